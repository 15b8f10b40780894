package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderRejectsNonPDF(t *testing.T) {
	r := NewRasterizer(nil)
	_, err := r.Render([]byte("not a pdf at all"))
	assert.Error(t, err)
}

func TestGuessImageContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nxxxx"), "image/png"},
		{"jpeg", []byte("\xff\xd8\xff\xe0xxxx"), "image/jpeg"},
		{"tiff little endian", []byte("II*\x00xxxx"), "image/tiff"},
		{"tiff big endian", []byte("MM\x00*xxxx"), "image/tiff"},
		{"unknown defaults to png", []byte("????"), "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guessImageContentType(tt.data))
		})
	}
}
