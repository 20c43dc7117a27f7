// Package worker implements the long-running Worker loop described in
// §4.7: dequeue, dispatch the Analyzer, write results, and participate in
// retry/DLQ semantics.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rshsreehari/coderev-platform/internal/analyzer"
	"github.com/rshsreehari/coderev-platform/internal/audit"
	"github.com/rshsreehari/coderev-platform/internal/cache"
	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/queue"
)

// Config carries the operational knobs named in §6.
type Config struct {
	MaxReceiveCount   int
	Concurrency       int
	ShutdownGraceTime time.Duration
}

// Worker owns one queue-consuming loop; Run spawns Config.Concurrency of
// them, each independent, competing for the same queue.
type Worker struct {
	store    jobstore.Store
	cache    cache.Cache
	queue    queue.Queue
	analyzer *analyzer.Analyzer
	audit    audit.Writer
	logger   mlog.Logger
	tracer   trace.Tracer
	cfg      Config
}

// New builds a Worker. audit may be a no-op writer when no audit sink is
// configured.
func New(store jobstore.Store, c cache.Cache, q queue.Queue, a *analyzer.Analyzer, auditWriter audit.Writer, logger mlog.Logger, tracer trace.Tracer, cfg Config) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	if cfg.ShutdownGraceTime <= 0 {
		cfg.ShutdownGraceTime = 30 * time.Second
	}

	return &Worker{store: store, cache: c, queue: q, analyzer: a, audit: auditWriter, logger: logger, tracer: tracer, cfg: cfg}
}

// Run starts Config.Concurrency goroutines, each looping until ctx is
// canceled, and blocks until every one has finished its in-flight message
// (bounded by ShutdownGraceTime).
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			w.loop(ctx, id)
		}(i)
	}

	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("worker %d shutting down", id)
			return
		default:
		}

		msg, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrNoMessage) {
				continue
			}

			w.logger.Warnf("worker %d: queue receive error: %v", id, err)

			continue
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownGraceTime)
		w.process(shutdownCtx, msg)
		cancel()
	}
}

// process implements §4.7's five-step algorithm for a single message.
func (w *Worker) process(ctx context.Context, msg *mmodel.QueueMessage) {
	ctx, span := w.tracer.Start(ctx, "worker.process")
	defer span.End()

	body := msg.Body

	if body.JobID == "" {
		w.logger.Errorf("worker: malformed message %s, deleting", msg.MessageID)
		_ = w.queue.Delete(ctx, msg)

		return
	}

	if msg.ReceiveCount == w.cfg.MaxReceiveCount {
		w.logger.Warnf("worker: job %s is on its terminal attempt (%d)", body.JobID, msg.ReceiveCount)
	}

	status, err := w.store.MarkProcessing(ctx, body.JobID, msg.ReceiveCount)
	if err != nil {
		w.logger.Errorf("worker: mark processing failed for job %s: %v", body.JobID, err)
		return
	}

	// Idempotency short-circuit: a prior attempt already completed this
	// job before crashing ahead of the queue delete. Redelivery is a no-op.
	if status == mmodel.StatusComplete {
		_ = w.queue.Delete(ctx, msg)
		return
	}

	report, err := w.analyzer.Analyze(ctx, body.FileName, body.FileContent)
	if err != nil {
		w.handleFailure(ctx, msg, err)
		return
	}

	fp := fingerprint.Fingerprint(body.Fingerprint)
	w.cache.Put(ctx, fp, report)

	start := time.Now()
	if err := w.store.Complete(ctx, body.JobID, report, report.Metrics.ProcessingTimeMS, msg.ReceiveCount); err != nil {
		w.logger.Errorf("worker: complete failed for job %s: %v", body.JobID, err)
		return
	}

	if err := w.queue.Delete(ctx, msg); err != nil {
		w.logger.Errorf("worker: delete failed for job %s: %v", body.JobID, err)
		return
	}

	w.audit.Append(ctx, mmodel.AuditRecord{
		Fingerprint: body.Fingerprint,
		JobID:       body.JobID,
		FileName:    body.FileName,
		RecordedAt:  start,
	})
}

func (w *Worker) handleFailure(ctx context.Context, msg *mmodel.QueueMessage, cause error) {
	body := msg.Body

	if msg.ReceiveCount >= w.cfg.MaxReceiveCount {
		movedToDLQ, err := w.queue.Requeue(ctx, msg, cause.Error())
		if err != nil {
			w.logger.Errorf("worker: routing job %s to dlq failed: %v", body.JobID, err)
			return
		}

		if err := w.store.MarkDLQ(ctx, body.JobID, msg.MessageID, cause.Error()); err != nil {
			w.logger.Errorf("worker: mark dlq failed for job %s: %v", body.JobID, err)
		}

		if !movedToDLQ {
			w.logger.Warnf("worker: job %s expected dlq routing but transport requeued instead", body.JobID)
		}

		return
	}

	if err := w.store.MarkRetrying(ctx, body.JobID, msg.ReceiveCount, cause.Error()); err != nil {
		w.logger.Errorf("worker: mark retrying failed for job %s: %v", body.JobID, err)
		return
	}

	if _, err := w.queue.Requeue(ctx, msg, cause.Error()); err != nil {
		w.logger.Errorf("worker: requeue failed for job %s: %v", body.JobID, err)
	}
}
