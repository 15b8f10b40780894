package async

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/verifactura/verifactura/internal/document"
)

// Job is one queued extraction: the persisted job row's ID plus the buffered
// document it must process.
type Job struct {
	JobID       uuid.UUID
	Handle      document.Handle
	SubmittedAt time.Time
	TraceID     string
}

// Processor is what a worker runs per job; the extraction service implements
// it. Errors are recorded on the job row, never returned to the submitter.
type Processor interface {
	ProcessJob(ctx context.Context, job Job) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
