package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewExtractor(nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", nil},
		{"plain text", []byte("hola mundo")},
		{"png bytes", []byte("\x89PNG\r\n\x1a\nrest")},
		{"truncated header", []byte("%PDF-1.7")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FACTURA   No.  001", "FACTURA No. 001"},
		{"linea uno\nlinea dos", "linea uno linea dos"},
		{"\t tab y espacios \n", "tab y espacios"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collapseWhitespace(tt.in))
	}
}
