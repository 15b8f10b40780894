package constants

import "strings"

// Format is the coarse document modality the pipeline branches on.
type Format string

const (
	TEXT  Format = "TEXT"
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// ImageExtensions holds the raster image extensions we accept for OCR.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
	"gif":  {},
}

// TextExtensions are decoded as UTF-8 and skip extraction entirely.
var TextExtensions = map[string]struct{}{
	"txt":  {},
	"csv":  {},
	"json": {},
	"xml":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to its Format, or "" when unknown.
func MapExtToFormat(ext string) Format {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := ImageExtensions[ext]; ok {
		return IMAGE
	}
	if _, ok := TextExtensions[ext]; ok {
		return TEXT
	}
	return ""
}

// MIMEForExt returns the content type declared to the OCR backend.
func MIMEForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "bmp":
		return "image/bmp"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
