package constants

// JobStatus is the canonical status for rows in extract_job.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"    // accepted, waiting for a worker
	JobStatusRunning   JobStatus = "RUNNING"   // orchestration in progress
	JobStatusCompleted JobStatus = "COMPLETED" // merged record persisted
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure, attempts recorded
)
