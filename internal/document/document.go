// Package document normalizes incoming payloads into in-memory handles the
// extraction pipeline can branch on.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/verifactura/verifactura/constants"
)

// ErrUnsupportedFormat is returned when a payload's modality cannot be
// determined from hints or content. No fallback is possible past this point.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Handle is an immutable reference to one document's source bytes plus the
// modality the pipeline resolved for it. Handles live for the duration of a
// single extraction request; treat all fields as read-only.
type Handle struct {
	Name     string
	Ext      string // normalized extension ("" when unknown)
	Format   constants.Format
	ForceOCR bool
	Data     []byte

	// Text carries the decoded payload for TEXT handles.
	Text string
}

// FromText wraps an already-textual payload.
func FromText(text string) Handle {
	return Handle{Format: constants.TEXT, Text: text}
}

// FromFile buffers file bytes and resolves the modality from, in order, the
// filename extension, the declared content type, and the payload's magic
// bytes. It fails with ErrUnsupportedFormat when none of them decide.
func FromFile(name string, data []byte, contentType string, forceOCR bool) (Handle, error) {
	ext := constants.NormalizeExt(filepath.Ext(name))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		format = formatFromContentType(contentType)
	}
	if format == "" {
		format = sniffFormat(data)
	}
	if format == "" {
		return Handle{}, fmt.Errorf("%w: name=%q content_type=%q", ErrUnsupportedFormat, name, contentType)
	}

	h := Handle{
		Name:     name,
		Ext:      ext,
		Format:   format,
		ForceOCR: forceOCR,
		Data:     data,
	}
	if format == constants.TEXT {
		h.Text = string(data)
	}
	return h, nil
}

// ContentType returns the MIME type declared to the OCR backend for this
// handle's bytes.
func (h Handle) ContentType() string {
	if h.Ext != "" {
		return constants.MIMEForExt(h.Ext)
	}
	switch h.Format {
	case constants.PDF:
		return "application/pdf"
	case constants.IMAGE:
		return sniffImageMIME(h.Data)
	default:
		return "text/plain"
	}
}

func formatFromContentType(ct string) constants.Format {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf":
		return constants.PDF
	case strings.HasPrefix(ct, "image/"):
		return constants.IMAGE
	case strings.HasPrefix(ct, "text/"),
		ct == "application/json",
		ct == "application/xml":
		return constants.TEXT
	}
	return ""
}

func sniffFormat(data []byte) constants.Format {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return constants.PDF
	case sniffImageMIME(data) != "":
		return constants.IMAGE
	}
	return ""
}

func sniffImageMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	}
	return ""
}
