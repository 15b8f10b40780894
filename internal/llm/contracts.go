package llm

import (
	"context"
	"fmt"
)

// Record is one extracted invoice. Every declared schema key is present;
// a field with no evidentiary basis in the input holds nil, never a guess.
type Record map[string]any

// ImageInput is a page image attached alongside text when the document's
// layout carries meaning (image-derived origins).
type ImageInput struct {
	Data        []byte
	ContentType string
}

// Params are pass-through sampling knobs; the pipeline never decides them.
type Params struct {
	Model           string
	Temperature     *float32
	TopP            *float32
	ReasoningEffort string // "", "minimal", "low", ... ("none" omits the field)
}

type ExtractRequest struct {
	Text   string
	Images []ImageInput
	Params Params
}

// SchemaExtractionError means the backend could not produce schema-conformant
// output even after the one internal repair attempt.
type SchemaExtractionError struct {
	Raw   []byte // last model output, for diagnostics
	Cause error
}

func (e *SchemaExtractionError) Error() string {
	return fmt.Sprintf("schema extraction failed: %v", e.Cause)
}

func (e *SchemaExtractionError) Unwrap() error {
	return e.Cause
}

// FieldExtractor is the interface the pipeline depends on. Tests substitute a
// stub implementing the same contract instead of the live backend.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Record, []byte, error)
}
