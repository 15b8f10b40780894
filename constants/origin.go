package constants

// TextOrigin records which extraction strategy produced the canonical text
// for a document. Every successful extraction carries exactly one origin.
type TextOrigin string

const (
	OriginTextInput     TextOrigin = "text-input"
	OriginPDFDirect     TextOrigin = "pdf-direct"
	OriginOCR           TextOrigin = "ocr"
	OriginOCRRasterized TextOrigin = "ocr-rasterized"
)
