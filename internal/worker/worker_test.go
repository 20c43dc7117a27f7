package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rshsreehari/coderev-platform/internal/analyzer"
	"github.com/rshsreehari/coderev-platform/internal/audit"
	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

type fakeStore struct {
	mu    sync.Mutex
	jobs  map[string]*mmodel.Job
}

func newFakeStore(job *mmodel.Job) *fakeStore {
	return &fakeStore{jobs: map[string]*mmodel.Job{job.ID: job}}
}

func (s *fakeStore) Create(context.Context, *mmodel.Job) error { return nil }

func (s *fakeStore) MarkProcessing(_ context.Context, id string, attempts int) (mmodel.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	if job.Status == mmodel.StatusComplete {
		return job.Status, nil
	}

	job.Status = mmodel.StatusProcessing
	job.Attempts = attempts

	return job.Status, nil
}

func (s *fakeStore) Complete(_ context.Context, id string, report *mmodel.Report, durationMS int64, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusComplete
	job.Result = report

	return nil
}

func (s *fakeStore) MarkRetrying(_ context.Context, id string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusRetrying
	job.LastError = lastError

	return nil
}

func (s *fakeStore) MarkDLQ(_ context.Context, id string, dlqMessageID string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusDLQ
	job.DLQMessageID = dlqMessageID

	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*mmodel.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, jobstore.ErrNotFound
	}

	return job, nil
}

func (s *fakeStore) GetByFingerprint(context.Context, string) ([]*mmodel.Job, error) { return nil, nil }
func (s *fakeStore) History(context.Context, string, int) ([]mmodel.JobSummary, error) {
	return nil, nil
}
func (s *fakeStore) CountByStatus(context.Context, mmodel.Status) (int, error) { return 0, nil }

type fakeCache struct{}

func (fakeCache) Get(context.Context, fingerprint.Fingerprint) (*mmodel.Report, bool) { return nil, false }
func (fakeCache) Put(context.Context, fingerprint.Fingerprint, *mmodel.Report)         {}

type fakeQueue struct {
	mu       sync.Mutex
	deleted  []string
	requeued []string
	dlqRouted bool
}

func (q *fakeQueue) Enqueue(context.Context, mmodel.QueueMessageBody) error { return nil }
func (q *fakeQueue) Receive(context.Context) (*mmodel.QueueMessage, error)  { return nil, nil }

func (q *fakeQueue) Delete(_ context.Context, msg *mmodel.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deleted = append(q.deleted, msg.MessageID)

	return nil
}

func (q *fakeQueue) Requeue(_ context.Context, msg *mmodel.QueueMessage, _ string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.requeued = append(q.requeued, msg.MessageID)

	movedToDLQ := msg.ReceiveCount+1 > 3
	if movedToDLQ {
		q.dlqRouted = true
	}

	return movedToDLQ, nil
}

func (q *fakeQueue) ReceiveDLQ(context.Context) (*mmodel.QueueMessage, error)   { return nil, nil }
func (q *fakeQueue) DeleteDLQ(context.Context, *mmodel.QueueMessage) error      { return nil }
func (q *fakeQueue) ResendToMain(context.Context, mmodel.QueueMessageBody) error { return nil }

func testAnalyzer(cfg analyzer.Config) *analyzer.Analyzer {
	return analyzer.New(cfg, nil, nil, mlog.NewNop(), noop.NewTracerProvider().Tracer("test"))
}

// A job already completed by a prior attempt must be treated idempotently:
// redelivery deletes the message and performs no further work (I2).
func TestProcess_IdempotentOnAlreadyCompleteJob(t *testing.T) {
	job := &mmodel.Job{ID: "job-1", Status: mmodel.StatusComplete}
	store := newFakeStore(job)
	q := &fakeQueue{}

	w := New(store, fakeCache{}, q, testAnalyzer(analyzer.Config{}), audit.NoopWriter{}, mlog.NewNop(), noop.NewTracerProvider().Tracer("test"), Config{MaxReceiveCount: 3})

	msg := &mmodel.QueueMessage{MessageID: "m1", ReceiveCount: 1, Body: mmodel.QueueMessageBody{JobID: "job-1", FileName: "a.js", FileContent: []byte("x")}}

	w.process(context.Background(), msg)

	require.Len(t, q.deleted, 1)
	assert.Empty(t, q.requeued)
}

// S2: a forced failure on its max_receive_count-th attempt must route the
// job to DLQ via the queue's requeue-to-DLQ path and set status=dlq.
func TestProcess_MaxReceiveCountRoutesToDLQ(t *testing.T) {
	job := &mmodel.Job{ID: "job-2", Status: mmodel.StatusQueued}
	store := newFakeStore(job)
	q := &fakeQueue{}

	w := New(store, fakeCache{}, q, testAnalyzer(analyzer.Config{AllowForceFail: true}), audit.NoopWriter{}, mlog.NewNop(), noop.NewTracerProvider().Tracer("test"), Config{MaxReceiveCount: 3})

	msg := &mmodel.QueueMessage{MessageID: "m2", ReceiveCount: 3, Body: mmodel.QueueMessageBody{JobID: "job-2", FileName: "force_fail.js", FileContent: []byte("x")}}

	w.process(context.Background(), msg)

	assert.True(t, q.dlqRouted)

	got, err := store.Get(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, mmodel.StatusDLQ, got.Status)
}

func TestProcess_BelowMaxReceiveCountMarksRetrying(t *testing.T) {
	job := &mmodel.Job{ID: "job-3", Status: mmodel.StatusQueued}
	store := newFakeStore(job)
	q := &fakeQueue{}

	w := New(store, fakeCache{}, q, testAnalyzer(analyzer.Config{AllowForceFail: true}), audit.NoopWriter{}, mlog.NewNop(), noop.NewTracerProvider().Tracer("test"), Config{MaxReceiveCount: 3})

	msg := &mmodel.QueueMessage{MessageID: "m3", ReceiveCount: 1, Body: mmodel.QueueMessageBody{JobID: "job-3", FileName: "force_fail.js", FileContent: []byte("x")}}

	w.process(context.Background(), msg)

	got, err := store.Get(context.Background(), "job-3")
	require.NoError(t, err)
	assert.Equal(t, mmodel.StatusRetrying, got.Status)
	assert.False(t, q.dlqRouted)
}
