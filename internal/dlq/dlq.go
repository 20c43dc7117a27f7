// Package dlq implements the DLQ Handler described in §4.8: a separate
// long-running process that durably records dead-lettered messages and
// exposes the operational surface for listing, resolving, and retrying them.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/queue"
)

// ErrNotFound mirrors jobstore.ErrNotFound for DLQEntry lookups.
var ErrNotFound = errors.New("dlq: entry not found")

// EntryStore is the durable-record half of the DLQ Handler's dependencies;
// implemented alongside jobstore.Store against the same Postgres schema.
type EntryStore interface {
	InsertIfAbsent(ctx context.Context, entry *mmodel.DLQEntry) error
	List(ctx context.Context, resolved *bool, limit, offset int) ([]mmodel.DLQEntry, error)
	Get(ctx context.Context, id string) (*mmodel.DLQEntry, error)
	Stats(ctx context.Context) (*mmodel.DLQStats, error)
	Resolve(ctx context.Context, id, reason string) error
	IncrementRetryCount(ctx context.Context, id string) error
}

// Handler wires the DLQ transport, the DLQEntry store, and the Job Store.
type Handler struct {
	entries EntryStore
	jobs    jobstore.Store
	queue   queue.Queue
	logger  mlog.Logger
}

// New builds a Handler.
func New(entries EntryStore, jobs jobstore.Store, q queue.Queue, logger mlog.Logger) *Handler {
	return &Handler{entries: entries, jobs: jobs, queue: q, logger: logger}
}

// Run loops forever consuming the companion DLQ destination until ctx is
// canceled.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := h.queue.ReceiveDLQ(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrNoMessage) {
				continue
			}

			h.logger.Warnf("dlq handler: receive error: %v", err)

			continue
		}

		h.handleOne(ctx, msg)
	}
}

func (h *Handler) handleOne(ctx context.Context, msg *mmodel.QueueMessage) {
	body := msg.Body

	entry := &mmodel.DLQEntry{
		ID:                uuid.NewString(),
		JobID:             body.JobID,
		MessageID:         msg.MessageID,
		Body:              body,
		FinalReceiveCount: msg.ReceiveCount,
		LastError:         "exceeded max receive count",
		MovedAt:           time.Now().UTC(),
	}

	if err := h.entries.InsertIfAbsent(ctx, entry); err != nil {
		h.logger.Errorf("dlq handler: insert entry for message %s failed: %v", msg.MessageID, err)
		return
	}

	if err := h.jobs.MarkDLQ(ctx, body.JobID, msg.MessageID, entry.LastError); err != nil {
		h.logger.Errorf("dlq handler: mark job %s dlq failed: %v", body.JobID, err)
		return
	}

	if err := h.queue.DeleteDLQ(ctx, msg); err != nil {
		h.logger.Errorf("dlq handler: delete dlq message %s failed: %v", msg.MessageID, err)
	}
}

// List implements §4.8's list(resolved?) operation.
func (h *Handler) List(ctx context.Context, resolved *bool, limit, offset int) ([]mmodel.DLQEntry, error) {
	return h.entries.List(ctx, resolved, limit, offset)
}

// Stats implements §4.8's stats() operation.
func (h *Handler) Stats(ctx context.Context) (*mmodel.DLQStats, error) {
	return h.entries.Stats(ctx)
}

// Get implements §4.8's get(dlq_id) lookup, exposed as GET /dlq/{id}.
func (h *Handler) Get(ctx context.Context, dlqID string) (*mmodel.DLQEntry, error) {
	return h.entries.Get(ctx, dlqID)
}

// Resolve implements §4.8's resolve(dlq_id, reason) operation. Idempotent
// (L3): repeated calls leave resolved=true and resolution_reason stable.
func (h *Handler) Resolve(ctx context.Context, dlqID, reason string) error {
	return h.entries.Resolve(ctx, dlqID, reason)
}

// Retry implements §4.8's retry(dlq_id) operation: resend the original
// body to the main queue, increment retry_count, and reset the job to
// "retrying" so the next successful attempt completes it (L2).
func (h *Handler) Retry(ctx context.Context, dlqID string) error {
	entry, err := h.entries.Get(ctx, dlqID)
	if err != nil {
		return fmt.Errorf("dlq: retry %s: %w", dlqID, err)
	}

	if err := h.queue.ResendToMain(ctx, entry.Body); err != nil {
		return fmt.Errorf("dlq: resend %s: %w", dlqID, err)
	}

	if err := h.entries.IncrementRetryCount(ctx, dlqID); err != nil {
		return fmt.Errorf("dlq: increment retry count %s: %w", dlqID, err)
	}

	if err := h.jobs.MarkRetrying(ctx, entry.JobID, entry.FinalReceiveCount, "retried from dlq"); err != nil {
		return fmt.Errorf("dlq: reset job %s to retrying: %w", entry.JobID, err)
	}

	return nil
}
