// Package queue implements the Job Queue described in §4.4: at-least-once
// delivery of review jobs to workers, with a companion dead-letter queue for
// messages that exceed the retry budget.
package queue

import (
	"context"
	"errors"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// ErrNoMessage is returned by Receive and ReceiveDLQ when ctx ends before a
// message arrives.
var ErrNoMessage = errors.New("queue: no message available")

// Queue is the contract consumed by the Submission Service (Enqueue), the
// Worker (Receive/Delete/Requeue), and the DLQ Handler (ReceiveDLQ/DeleteDLQ/
// ResendToMain).
type Queue interface {
	// Enqueue publishes a new job onto the main queue.
	Enqueue(ctx context.Context, body mmodel.QueueMessageBody) error

	// Receive blocks until the next message arrives or ctx ends, returning
	// ErrNoMessage in the latter case. It has no wait bound of its own.
	// The returned message's ReceiveCount reflects every delivery attempt
	// so far, including this one.
	Receive(ctx context.Context) (*mmodel.QueueMessage, error)

	// Delete acknowledges successful processing of a message, removing it
	// from the main queue permanently.
	Delete(ctx context.Context, msg *mmodel.QueueMessage) error

	// Requeue nacks a message for redelivery, stamping its receive count so
	// the next Receive reports the incremented value. Once a message's
	// receive count would exceed the configured maximum, the implementation
	// routes it to the dead-letter queue instead of requeuing it, and
	// movedToDLQ is true.
	Requeue(ctx context.Context, msg *mmodel.QueueMessage, reason string) (movedToDLQ bool, err error)

	// ReceiveDLQ reads the next dead-lettered message without removing it
	// from the underlying transport; callers persist it via jobstore and
	// then call DeleteDLQ.
	ReceiveDLQ(ctx context.Context) (*mmodel.QueueMessage, error)

	// DeleteDLQ removes a dead-lettered message from the DLQ transport once
	// its DLQEntry has been durably recorded.
	DeleteDLQ(ctx context.Context, msg *mmodel.QueueMessage) error

	// ResendToMain republishes a dead-lettered message's body onto the main
	// queue, used by the DLQ Handler's retry operation (§4.8).
	ResendToMain(ctx context.Context, body mmodel.QueueMessageBody) error
}
