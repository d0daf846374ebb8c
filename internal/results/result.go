// Package results records recognition outcomes: a durable BoltDB table plus
// an operator-facing XLSX workbook.
package results

import (
	"errors"
	"time"

	"github.com/ai4fin/invoice-scanner/internal/capture"
	"github.com/ai4fin/invoice-scanner/internal/extraction"
)

// Status tags a recognition outcome.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result is the terminal record for one capture job: either the extracted
// invoice fields or the reason extraction failed. Exactly one Result exists
// per job accepted into the queue.
type Result struct {
	JobID         uint64                  `json:"job_id"`
	Status        Status                  `json:"status"`
	Record        *extraction.InvoiceData `json:"record,omitempty"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	CapturedAt    time.Time               `json:"captured_at"`
	CompletedAt   time.Time               `json:"completed_at"`
	ShotPath      string                  `json:"shot_path,omitempty"`
}

// NewSuccess builds a success result for a job.
func NewSuccess(job *capture.Job, record *extraction.InvoiceData) *Result {
	return &Result{
		JobID:       job.ID,
		Status:      StatusOK,
		Record:      record,
		CapturedAt:  job.CapturedAt,
		CompletedAt: time.Now(),
		ShotPath:    job.ShotPath,
	}
}

// NewFailure builds a failure result for a job.
func NewFailure(job *capture.Job, reason string) *Result {
	return &Result{
		JobID:         job.ID,
		Status:        StatusFailed,
		FailureReason: reason,
		CapturedAt:    job.CapturedAt,
		CompletedAt:   time.Now(),
		ShotPath:      job.ShotPath,
	}
}

// Sink is an append-only destination for results. Implementations must be
// safe for concurrent Append from multiple workers and must never reorder
// or drop previously appended rows.
type Sink interface {
	Append(result *Result) error
}

// Tee appends every result to all of its sinks. A failing sink does not
// stop the others; errors are joined.
type Tee struct {
	sinks []Sink
}

// NewTee fans results out to the given sinks.
func NewTee(sinks ...Sink) *Tee {
	return &Tee{sinks: sinks}
}

// Append writes the result to every sink.
func (t *Tee) Append(result *Result) error {
	var errs []error
	for _, s := range t.sinks {
		if err := s.Append(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
