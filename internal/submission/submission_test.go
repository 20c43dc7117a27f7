package submission

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*mmodel.Job
}

func newMemStore() *memStore { return &memStore{jobs: make(map[string]*mmodel.Job)} }

func (m *memStore) Create(_ context.Context, job *mmodel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *job
	m.jobs[job.ID] = &cp

	return nil
}

func (m *memStore) MarkProcessing(_ context.Context, id string, attempts int) (mmodel.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return "", jobstore.ErrNotFound
	}

	if job.Status == mmodel.StatusComplete {
		return job.Status, nil
	}

	job.Status = mmodel.StatusProcessing
	job.Attempts = attempts

	return job.Status, nil
}

func (m *memStore) Complete(_ context.Context, id string, report *mmodel.Report, durationMS int64, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[id]
	job.Status = mmodel.StatusComplete
	job.Result = report
	job.ProcessingTimeMS = durationMS
	job.Attempts = attempts

	return nil
}

func (m *memStore) MarkRetrying(_ context.Context, id string, attempts int, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[id]
	job.Status = mmodel.StatusRetrying
	job.Attempts = attempts
	job.LastError = lastError

	return nil
}

func (m *memStore) MarkDLQ(_ context.Context, id string, dlqMessageID string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[id]
	job.Status = mmodel.StatusDLQ
	job.DLQMessageID = dlqMessageID
	job.LastError = lastError

	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*mmodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, jobstore.ErrNotFound
	}

	cp := *job

	return &cp, nil
}

func (m *memStore) GetByFingerprint(_ context.Context, fp string) ([]*mmodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*mmodel.Job

	for _, job := range m.jobs {
		if job.Fingerprint == fp {
			cp := *job
			out = append(out, &cp)
		}
	}

	return out, nil
}

func (m *memStore) History(_ context.Context, owner string, limit int) ([]mmodel.JobSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []mmodel.JobSummary

	for _, job := range m.jobs {
		if job.Owner == owner {
			out = append(out, mmodel.JobSummary{ID: job.ID, FileName: job.FileName, Status: job.Status})
		}

		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context, status mmodel.Status) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0

	for _, job := range m.jobs {
		if job.Status == status {
			n++
		}
	}

	return n, nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string]*mmodel.Report
}

func newMemCache() *memCache { return &memCache{items: make(map[string]*mmodel.Report)} }

func (c *memCache) Get(_ context.Context, fp fingerprint.Fingerprint) (*mmodel.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.items[fp.String()]

	return r, ok
}

func (c *memCache) Put(_ context.Context, fp fingerprint.Fingerprint, report *mmodel.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[fp.String()] = report
}

type memQueue struct {
	mu       sync.Mutex
	enqueued []mmodel.QueueMessageBody
}

func (q *memQueue) Enqueue(_ context.Context, body mmodel.QueueMessageBody) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.enqueued = append(q.enqueued, body)

	return nil
}
func (q *memQueue) Receive(context.Context) (*mmodel.QueueMessage, error) { return nil, nil }
func (q *memQueue) Delete(context.Context, *mmodel.QueueMessage) error    { return nil }
func (q *memQueue) Requeue(context.Context, *mmodel.QueueMessage, string) (bool, error) {
	return false, nil
}
func (q *memQueue) ReceiveDLQ(context.Context) (*mmodel.QueueMessage, error) { return nil, nil }
func (q *memQueue) DeleteDLQ(context.Context, *mmodel.QueueMessage) error   { return nil }
func (q *memQueue) ResendToMain(context.Context, mmodel.QueueMessageBody) error { return nil }

func TestSubmit_EmptyContentIsInvalidInput(t *testing.T) {
	svc := New(newMemStore(), newMemCache(), &memQueue{}, mlog.NewNop(), 0, nil)

	_, err := svc.Submit(context.Background(), Request{FileName: "a.js", FileContent: nil, Owner: "u1"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

// L1: once the report for a fingerprint is cached (as the worker does when
// the first submission completes), submitting the same content again
// returns cache_hit=true with status complete and persists a cache-hit job.
func TestSubmit_SecondIdenticalSubmissionIsCacheHit(t *testing.T) {
	store := newMemStore()
	c := newMemCache()
	q := &memQueue{}
	svc := New(store, c, q, mlog.NewNop(), 0, nil)

	content := []byte("eval(input)\n")
	fp := fingerprint.Hash(content)

	report := &mmodel.Report{FileName: "a.js"}
	c.Put(context.Background(), fp, report)

	result, err := svc.Submit(context.Background(), Request{FileName: "a.js", FileContent: content, Owner: "u1"})
	require.NoError(t, err)
	assert.True(t, result.CacheHit)
	assert.Equal(t, mmodel.StatusComplete, result.Status)

	job, err := store.Get(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.Equal(t, mmodel.StatusComplete, job.Status)
	assert.True(t, job.CacheHit)
}

func TestSubmit_CacheMissEnqueuesAndMarksQueued(t *testing.T) {
	store := newMemStore()
	c := newMemCache()
	q := &memQueue{}
	svc := New(store, c, q, mlog.NewNop(), 0, nil)

	result, err := svc.Submit(context.Background(), Request{FileName: "a.js", FileContent: []byte("x"), Owner: "u1"})
	require.NoError(t, err)
	assert.False(t, result.CacheHit)
	assert.Equal(t, mmodel.StatusQueued, result.Status)
	assert.Len(t, q.enqueued, 1)
}

func TestSubmit_OversizeContentIsInvalidInput(t *testing.T) {
	svc := New(newMemStore(), newMemCache(), &memQueue{}, mlog.NewNop(), 4, nil)

	_, err := svc.Submit(context.Background(), Request{FileName: "a.js", FileContent: []byte("12345"), Owner: "u1"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
