package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshsreehari/coderev-platform/internal/dlq"
	"github.com/rshsreehari/coderev-platform/internal/fingerprint"
	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/stats"
	"github.com/rshsreehari/coderev-platform/internal/submission"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*mmodel.Job
}

func newMemStore() *memStore { return &memStore{jobs: map[string]*mmodel.Job{}} }

func (m *memStore) Create(_ context.Context, job *mmodel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *job
	m.jobs[job.ID] = &cp

	return nil
}

func (m *memStore) MarkProcessing(context.Context, string, int) (mmodel.Status, error) {
	return mmodel.StatusProcessing, nil
}
func (m *memStore) Complete(context.Context, string, *mmodel.Report, int64, int) error { return nil }
func (m *memStore) MarkRetrying(context.Context, string, int, string) error            { return nil }
func (m *memStore) MarkDLQ(context.Context, string, string, string) error              { return nil }

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

func (m *memStore) GetByFingerprint(context.Context, string) ([]*mmodel.Job, error) { return nil, nil }
func (m *memStore) History(context.Context, string, int) ([]mmodel.JobSummary, error) {
	return nil, nil
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

type memCache struct{}

func (memCache) Get(context.Context, fingerprint.Fingerprint) (*mmodel.Report, bool) { return nil, false }
func (memCache) Put(context.Context, fingerprint.Fingerprint, *mmodel.Report)         {}

type memQueue struct{ enqueued int }

func (q *memQueue) Enqueue(context.Context, mmodel.QueueMessageBody) error { q.enqueued++; return nil }
func (q *memQueue) Receive(context.Context) (*mmodel.QueueMessage, error)  { return nil, nil }
func (q *memQueue) Delete(context.Context, *mmodel.QueueMessage) error     { return nil }
func (q *memQueue) Requeue(context.Context, *mmodel.QueueMessage, string) (bool, error) {
	return false, nil
}
func (q *memQueue) ReceiveDLQ(context.Context) (*mmodel.QueueMessage, error)    { return nil, nil }
func (q *memQueue) DeleteDLQ(context.Context, *mmodel.QueueMessage) error       { return nil }
func (q *memQueue) ResendToMain(context.Context, mmodel.QueueMessageBody) error { return nil }

type memEntryStore struct{}

func (memEntryStore) InsertIfAbsent(context.Context, *mmodel.DLQEntry) error { return nil }
func (memEntryStore) List(context.Context, *bool, int, int) ([]mmodel.DLQEntry, error) {
	return nil, nil
}
func (memEntryStore) Get(context.Context, string) (*mmodel.DLQEntry, error) { return nil, dlq.ErrNotFound }
func (memEntryStore) Stats(context.Context) (*mmodel.DLQStats, error)       { return &mmodel.DLQStats{}, nil }
func (memEntryStore) Resolve(context.Context, string, string) error        { return nil }
func (memEntryStore) IncrementRetryCount(context.Context, string) error    { return nil }

func newTestServer() (*Server, *memStore, *memQueue) {
	store := newMemStore()
	q := &memQueue{}
	collector := stats.New()
	svc := submission.New(store, memCache{}, q, mlog.NewNop(), 0, collector)
	handler := dlq.New(memEntryStore{}, store, q, mlog.NewNop())

	return New(svc, handler, store, collector, 4, mlog.NewNop()), store, q
}

func TestSubmitReview_CacheMissReturnsQueued(t *testing.T) {
	srv, _, q := newTestServer()
	app := srv.NewRouter()

	body, _ := json.Marshal(map[string]any{"file_name": "a.js", "file_content": "eval(x)"})
	req := httptest.NewRequest("POST", "/reviews/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, q.enqueued)

	var got submitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, mmodel.StatusQueued, got.Status)
	assert.False(t, got.CacheHit)
}

func TestSubmitReview_EmptyContentIsBadRequest(t *testing.T) {
	srv, _, _ := newTestServer()
	app := srv.NewRouter()

	body, _ := json.Marshal(map[string]any{"file_name": "a.js", "file_content": ""})
	req := httptest.NewRequest("POST", "/reviews/submit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestReviewStatus_UnknownJobIDIsNotFound(t *testing.T) {
	srv, _, _ := newTestServer()
	app := srv.NewRouter()

	req := httptest.NewRequest("GET", "/reviews/status/does-not-exist", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestHealth_ReportsOK(t *testing.T) {
	srv, _, _ := newTestServer()
	app := srv.NewRouter()

	req := httptest.NewRequest("GET", "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "ok", got.Status)
}

func TestOwnerFromBearerHeader_MalformedTokenYieldsNoOwner(t *testing.T) {
	owner, ok := ownerFromBearerHeader("Bearer not-a-jwt")
	assert.False(t, ok)
	assert.Empty(t, owner)
}
