package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verifactura/verifactura/constants"
)

var (
	pdfBytes  = []byte("%PDF-1.7 fake body")
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n"), []byte("rest")...)
	jpegBytes = append([]byte("\xff\xd8\xff\xe0"), []byte("rest")...)
)

func TestFromFileResolvesFormat(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		data        []byte
		contentType string
		want        constants.Format
	}{
		{"pdf by extension", "factura.pdf", []byte("anything"), "", constants.PDF},
		{"extension wins over content type", "scan.png", pdfBytes, "application/pdf", constants.IMAGE},
		{"image by extension uppercase", "SCAN.JPG", []byte("x"), "", constants.IMAGE},
		{"text by extension", "notas.txt", []byte("hola"), "", constants.TEXT},
		{"pdf by content type", "blob", pdfBytes, "application/pdf", constants.PDF},
		{"image by content type", "blob", jpegBytes, "image/jpeg; charset=binary", constants.IMAGE},
		{"text by content type", "blob", []byte("hola"), "text/plain", constants.TEXT},
		{"pdf by magic bytes", "blob", pdfBytes, "", constants.PDF},
		{"png by magic bytes", "blob", pngBytes, "", constants.IMAGE},
		{"jpeg by magic bytes", "blob", jpegBytes, "application/octet-stream", constants.IMAGE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := FromFile(tt.fileName, tt.data, tt.contentType, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Format)
		})
	}
}

func TestFromFileUnsupported(t *testing.T) {
	_, err := FromFile("mystery.bin", []byte{0x00, 0x01, 0x02}, "application/octet-stream", false)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFromFileTextPayload(t *testing.T) {
	h, err := FromFile("factura.txt", []byte("FACTURA 001-002-000123"), "", false)
	require.NoError(t, err)
	assert.Equal(t, "FACTURA 001-002-000123", h.Text)
}

func TestFromText(t *testing.T) {
	h := FromText("contenido")
	assert.Equal(t, constants.TEXT, h.Format)
	assert.Equal(t, "contenido", h.Text)
}

func TestForceOCRCarriedOnHandle(t *testing.T) {
	h, err := FromFile("factura.pdf", pdfBytes, "", true)
	require.NoError(t, err)
	assert.True(t, h.ForceOCR)
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     string
	}{
		{"pdf extension", "a.pdf", pdfBytes, "application/pdf"},
		{"jpg extension", "a.jpg", jpegBytes, "image/jpeg"},
		{"tiff extension", "a.tif", []byte("II*\x00"), "image/tiff"},
		{"sniffed png", "noext", pngBytes, "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := FromFile(tt.fileName, tt.data, "", false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.ContentType())
		})
	}
}
