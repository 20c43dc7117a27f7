// Package jobstore implements the durable mapping from job identifier to
// job record described in §4.3: the single source of truth for job state.
package jobstore

import (
	"context"
	"errors"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// ErrNotFound is returned by Get for an unknown job id.
var ErrNotFound = errors.New("jobstore: job not found")

// Store is the contract consumed by the Submission Service, Worker, and DLQ
// Handler. Every mutating operation is atomic at row granularity.
type Store interface {
	// Create persists a new job in the given initial status. Used both for
	// the queued path and for the synchronous cache-hit completion path.
	Create(ctx context.Context, job *mmodel.Job) error

	// MarkProcessing transitions a job to "processing", guarded so a
	// completed job can never be regressed by a redelivered message.
	// Returns the job's current status as observed by the guard, so the
	// caller can short-circuit when it is already "complete" (idempotency,
	// §4.7).
	MarkProcessing(ctx context.Context, id string, attempts int) (mmodel.Status, error)

	// Complete transitions a job to "complete" and stores its result.
	Complete(ctx context.Context, id string, report *mmodel.Report, durationMS int64, attempts int) error

	// MarkRetrying transitions a job to "retrying" with the given error
	// text, recording the attempt count observed by the worker.
	MarkRetrying(ctx context.Context, id string, attempts int, lastError string) error

	// MarkDLQ transitions a job to "dlq", recording the dead-letter message
	// id that now owns it.
	MarkDLQ(ctx context.Context, id string, dlqMessageID string, lastError string) error

	// Get reads a single job by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*mmodel.Job, error)

	// GetByFingerprint supports the observability lookup named in §4.3.
	GetByFingerprint(ctx context.Context, fp string) ([]*mmodel.Job, error)

	// History lists the most recent jobs for an owner, newest first,
	// bounded by limit (callers are responsible for enforcing the ≤50 cap
	// from §4.6).
	History(ctx context.Context, owner string, limit int) ([]mmodel.JobSummary, error)

	// CountByStatus supports queue-depth estimation (§4.3's status+time
	// secondary lookup).
	CountByStatus(ctx context.Context, status mmodel.Status) (int, error)
}
