package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/verifactura/verifactura/constants"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/pipeline"
)

// Job is one extraction request's lifecycle row. JSON columns hold the
// merged record, warnings and the classifier distribution.
type Job struct {
	ID            uuid.UUID            `json:"id"`
	Name          string               `json:"name"`
	Status        constants.JobStatus  `json:"status"`
	Origin        constants.TextOrigin `json:"text_origin,omitempty"`
	Fields        map[string]any       `json:"fields,omitempty"`
	RawText       string               `json:"raw_text,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	Category      string               `json:"category,omitempty"`
	Probabilities map[string]float64   `json:"probabilities,omitempty"`
	Attempts      []pipeline.Attempt   `json:"attempts,omitempty"`
	ErrorMessage  string               `json:"error_message,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	FinishedAt    *time.Time           `json:"finished_at,omitempty"`
}

// JobOutcome carries everything a finished job persists.
type JobOutcome struct {
	Origin        constants.TextOrigin
	Fields        map[string]any
	RawText       string
	Warnings      []string
	Category      string
	Probabilities map[string]float64
	Attempts      []pipeline.Attempt
}

type JobRepository interface {
	Create(ctx context.Context, name string) (*Job, error)
	Start(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*Job, error)
	ListCompleted(ctx context.Context) ([]*Job, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Create(ctx context.Context, name string) (*Job, error) {
	job := &Job{
		ID:        uuid.New(),
		Name:      name,
		Status:    constants.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO extraction_jobs (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		job.ID.String(), job.Name, string(job.Status), job.CreatedAt,
	)
	if err != nil {
		r.log.Error("job create failed", "name", name, "err", err)
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	r.log.Info("job created", "job_id", job.ID, "name", name)
	return job, nil
}

func (r *jobRepo) Start(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = $1, started_at = $2 WHERE id = $3`,
		string(constants.JobStatusRunning), time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		r.log.Error("job start failed", "job_id", jobID, "err", err)
		return common.WrapError(common.ErrDatabase, err.Error())
	}
	r.log.Info("job started", "job_id", jobID)
	return nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	fieldsJSON := marshalOrNull(out.Fields)
	warnsJSON := marshalOrNull(out.Warnings)
	probsJSON := marshalOrNull(out.Probabilities)
	attemptsJSON := marshalOrNull(out.Attempts)

	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extraction_jobs
		 SET status = $1, text_origin = $2, fields_json = $3, raw_text = $4,
		     warnings_json = $5, category = $6, probs_json = $7, attempts_json = $8,
		     finished_at = $9
		 WHERE id = $10`,
		string(constants.JobStatusCompleted), string(out.Origin), fieldsJSON, out.RawText,
		warnsJSON, out.Category, probsJSON, attemptsJSON, time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		r.log.Error("job finish(COMPLETED) failed", "job_id", jobID, "err", err)
		return common.WrapError(common.ErrDatabase, err.Error())
	}
	r.log.Info("job finished (COMPLETED)", "job_id", jobID, "origin", out.Origin)
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE extraction_jobs SET status = $1, error_message = $2, finished_at = $3 WHERE id = $4`,
		string(constants.JobStatusFailed), message, time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		r.log.Error("job finish(FAILED) failed", "job_id", jobID, "err", err)
		return common.WrapError(common.ErrDatabase, err.Error())
	}
	r.log.Warn("job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

const jobColumns = `id, name, status, text_origin, fields_json, raw_text,
	warnings_json, category, probs_json, attempts_json, error_message,
	created_at, started_at, finished_at`

func (r *jobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE id = $1`, jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "job "+jobID.String())
	}
	if err != nil {
		r.log.Error("job get failed", "job_id", jobID, "err", err)
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	return job, nil
}

func (r *jobRepo) ListCompleted(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE status = $1 ORDER BY created_at`,
		string(constants.JobStatusCompleted))
	if err != nil {
		r.log.Error("job list failed", "err", err)
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		id           string
		status       string
		origin       sql.NullString
		fieldsJSON   sql.NullString
		rawText      sql.NullString
		warnsJSON    sql.NullString
		category     sql.NullString
		probsJSON    sql.NullString
		attemptsJSON sql.NullString
		errMsg       sql.NullString
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
	)
	err := row.Scan(&id, &job.Name, &status, &origin, &fieldsJSON, &rawText,
		&warnsJSON, &category, &probsJSON, &attemptsJSON, &errMsg,
		&job.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	job.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.Origin = constants.TextOrigin(origin.String)
	job.RawText = rawText.String
	job.Category = category.String
	job.ErrorMessage = errMsg.String
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		if err := json.Unmarshal([]byte(fieldsJSON.String), &job.Fields); err != nil {
			return nil, err
		}
	}
	if warnsJSON.Valid && warnsJSON.String != "" {
		if err := json.Unmarshal([]byte(warnsJSON.String), &job.Warnings); err != nil {
			return nil, err
		}
	}
	if probsJSON.Valid && probsJSON.String != "" {
		if err := json.Unmarshal([]byte(probsJSON.String), &job.Probabilities); err != nil {
			return nil, err
		}
	}
	if attemptsJSON.Valid && attemptsJSON.String != "" {
		if err := json.Unmarshal([]byte(attemptsJSON.String), &job.Attempts); err != nil {
			return nil, err
		}
	}
	return &job, nil
}

func marshalOrNull(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	case map[string]float64:
		if len(t) == 0 {
			return nil
		}
	case []pipeline.Attempt:
		if len(t) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
