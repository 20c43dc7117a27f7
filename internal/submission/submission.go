// Package submission implements the Submission Service described in §4.6:
// the single entry point clients use to submit a file for review, poll its
// status, and list their recent history.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rshsreehari/coderev-platform/internal/cache"
	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/queue"
	"github.com/rshsreehari/coderev-platform/internal/stats"
)

// ErrInvalidInput is the §7 InvalidInput error kind.
var ErrInvalidInput = errors.New("submission: invalid input")

const maxHistoryLimit = 50

// Request is the validated input to Submit.
type Request struct {
	FileName    string
	FileContent []byte
	Owner       string
}

// Result is what Submit returns: either a synchronously completed job
// (cache hit) or a freshly queued one.
type Result struct {
	JobID    string
	Status   mmodel.Status
	CacheHit bool
	Report   *mmodel.Report
}

// Service wires the Job Store, Result Cache, and Job Queue together.
type Service struct {
	store          jobstore.Store
	cache          cache.Cache
	queue          queue.Queue
	logger         mlog.Logger
	maxContentBytes int
	stats          *stats.Collector
}

// New builds a Service. maxContentBytes of 0 disables the size ceiling. A
// nil stats.Collector is tolerated: cache hit/miss counting is then skipped.
func New(store jobstore.Store, c cache.Cache, q queue.Queue, logger mlog.Logger, maxContentBytes int, collector *stats.Collector) *Service {
	return &Service{store: store, cache: c, queue: q, logger: logger, maxContentBytes: maxContentBytes, stats: collector}
}

// Submit implements §4.6's submit operation.
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	if len(req.FileContent) == 0 {
		return nil, fmt.Errorf("%w: file_content must not be empty", ErrInvalidInput)
	}

	if req.FileName == "" {
		return nil, fmt.Errorf("%w: file_name must not be empty", ErrInvalidInput)
	}

	if s.maxContentBytes > 0 && len(req.FileContent) > s.maxContentBytes {
		return nil, fmt.Errorf("%w: file_content exceeds maximum of %d bytes", ErrInvalidInput, s.maxContentBytes)
	}

	fp := fingerprint.Hash(req.FileContent)

	report, hit := s.cache.Get(ctx, fp)
	if s.stats != nil {
		if hit {
			s.stats.RecordCacheHit()
		} else {
			s.stats.RecordCacheMiss()
		}
	}

	if hit {
		return s.completeFromCache(ctx, req, fp, report)
	}

	return s.enqueueNew(ctx, req, fp)
}

// completeFromCache implements the cache-hit path: the job record is
// written in "complete" status before Submit returns, so a subsequent
// status poll always observes a consistent view (§4.6, I1/L1).
func (s *Service) completeFromCache(ctx context.Context, req Request, fp fingerprint.Fingerprint, report *mmodel.Report) (*Result, error) {
	now := time.Now().UTC()

	job := &mmodel.Job{
		ID:               uuid.NewString(),
		Owner:            req.Owner,
		Fingerprint:      fp.String(),
		FileName:         req.FileName,
		FileContent:      req.FileContent,
		Status:           mmodel.StatusComplete,
		Result:           report,
		CacheHit:         true,
		CreatedAt:        now,
		CompletedAt:      &now,
		ProcessingTimeMS: 0,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("submission: create cache-hit job: %w", err)
	}

	return &Result{JobID: job.ID, Status: job.Status, CacheHit: true, Report: report}, nil
}

func (s *Service) enqueueNew(ctx context.Context, req Request, fp fingerprint.Fingerprint) (*Result, error) {
	jobID := uuid.NewString()
	now := time.Now().UTC()

	job := &mmodel.Job{
		ID:          jobID,
		Owner:       req.Owner,
		Fingerprint: fp.String(),
		FileName:    req.FileName,
		FileContent: req.FileContent,
		Status:      mmodel.StatusQueued,
		CreatedAt:   now,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("submission: create queued job: %w", err)
	}

	body := mmodel.QueueMessageBody{
		JobID:       jobID,
		Fingerprint: fp.String(),
		FileName:    req.FileName,
		FileContent: req.FileContent,
	}

	if err := s.queue.Enqueue(ctx, body); err != nil {
		return nil, fmt.Errorf("submission: enqueue job %s: %w", jobID, err)
	}

	return &Result{JobID: jobID, Status: mmodel.StatusQueued, CacheHit: false}, nil
}

// Status implements §4.6's status operation: a direct read-through of the
// Job Store.
func (s *Service) Status(ctx context.Context, jobID string) (*mmodel.Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return job, nil
}

// History implements §4.6's history operation, enforcing the ≤50 cap.
func (s *Service) History(ctx context.Context, owner string, limit int) ([]mmodel.JobSummary, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return s.store.History(ctx, owner, limit)
}
