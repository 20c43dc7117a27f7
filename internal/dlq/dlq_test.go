package dlq

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
	"github.com/rshsreehari/coderev-platform/internal/queue"
)

type fakeEntryStore struct {
	mu      sync.Mutex
	entries map[string]*mmodel.DLQEntry
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: map[string]*mmodel.DLQEntry{}}
}

func (s *fakeEntryStore) InsertIfAbsent(_ context.Context, entry *mmodel.DLQEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.MessageID == entry.MessageID {
			return nil
		}
	}

	copied := *entry
	s.entries[entry.ID] = &copied

	return nil
}

func (s *fakeEntryStore) List(context.Context, *bool, int, int) ([]mmodel.DLQEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]mmodel.DLQEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}

	return out, nil
}

func (s *fakeEntryStore) Get(_ context.Context, id string) (*mmodel.DLQEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *e

	return &copied, nil
}

func (s *fakeEntryStore) Stats(context.Context) (*mmodel.DLQStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &mmodel.DLQStats{Total: len(s.entries)}, nil
}

func (s *fakeEntryStore) Resolve(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}

	e.Resolved = true
	e.ResolutionReason = reason

	return nil
}

func (s *fakeEntryStore) IncrementRetryCount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}

	e.RetryCount++

	return nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*mmodel.Job
}

func newFakeJobStore(job *mmodel.Job) *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*mmodel.Job{job.ID: job}}
}

func (s *fakeJobStore) Create(context.Context, *mmodel.Job) error { return nil }

func (s *fakeJobStore) MarkProcessing(_ context.Context, id string, attempts int) (mmodel.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusProcessing
	job.Attempts = attempts

	return job.Status, nil
}

func (s *fakeJobStore) Complete(_ context.Context, id string, report *mmodel.Report, _ int64, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusComplete
	job.Result = report

	return nil
}

func (s *fakeJobStore) MarkRetrying(_ context.Context, id string, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusRetrying
	job.Attempts = attempts
	job.LastError = lastError

	return nil
}

func (s *fakeJobStore) MarkDLQ(_ context.Context, id string, dlqMessageID string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.Status = mmodel.StatusDLQ
	job.DLQMessageID = dlqMessageID
	job.LastError = lastError

	return nil
}

func (s *fakeJobStore) Get(_ context.Context, id string) (*mmodel.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.jobs[id], nil
}

func (s *fakeJobStore) GetByFingerprint(context.Context, string) ([]*mmodel.Job, error) { return nil, nil }
func (s *fakeJobStore) History(context.Context, string, int) ([]mmodel.JobSummary, error) {
	return nil, nil
}
func (s *fakeJobStore) CountByStatus(context.Context, mmodel.Status) (int, error) { return 0, nil }

type fakeQueue struct {
	mu       sync.Mutex
	dlqIn    []*mmodel.QueueMessage
	dlqOut   []string
	resentTo []mmodel.QueueMessageBody
}

func (q *fakeQueue) Enqueue(context.Context, mmodel.QueueMessageBody) error { return nil }
func (q *fakeQueue) Receive(context.Context) (*mmodel.QueueMessage, error)  { return nil, nil }
func (q *fakeQueue) Delete(context.Context, *mmodel.QueueMessage) error     { return nil }
func (q *fakeQueue) Requeue(context.Context, *mmodel.QueueMessage, string) (bool, error) {
	return false, nil
}

func (q *fakeQueue) ReceiveDLQ(context.Context) (*mmodel.QueueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.dlqIn) == 0 {
		return nil, queue.ErrNoMessage
	}

	msg := q.dlqIn[0]
	q.dlqIn = q.dlqIn[1:]

	return msg, nil
}

func (q *fakeQueue) DeleteDLQ(_ context.Context, msg *mmodel.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.dlqOut = append(q.dlqOut, msg.MessageID)

	return nil
}

func (q *fakeQueue) ResendToMain(_ context.Context, body mmodel.QueueMessageBody) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resentTo = append(q.resentTo, body)

	return nil
}

// handleOne persists one DLQEntry row, marks the owning job "dlq", and
// removes the message from the DLQ transport.
func TestHandleOne_RecordsEntryAndMarksJobDLQ(t *testing.T) {
	job := &mmodel.Job{ID: "job-1", Status: mmodel.StatusRetrying}
	jobs := newFakeJobStore(job)
	entries := newFakeEntryStore()
	q := &fakeQueue{}
	h := New(entries, jobs, q, mlog.NewNop())

	msg := &mmodel.QueueMessage{
		MessageID:    "m1",
		ReceiveCount: 4,
		Body:         mmodel.QueueMessageBody{JobID: "job-1", FileName: "a.js", FileContent: []byte("x")},
	}

	h.handleOne(context.Background(), msg)

	got, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, mmodel.StatusDLQ, got.Status)
	assert.Equal(t, []string{"m1"}, q.dlqOut)

	list, err := entries.List(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "job-1", list[0].JobID)
	assert.Equal(t, 4, list[0].FinalReceiveCount)
}

// handleOne must not insert a second row for a message already recorded
// (idempotent by message_id, §4.8).
func TestHandleOne_IdempotentOnDuplicateMessageID(t *testing.T) {
	job := &mmodel.Job{ID: "job-1", Status: mmodel.StatusRetrying}
	jobs := newFakeJobStore(job)
	entries := newFakeEntryStore()
	q := &fakeQueue{}
	h := New(entries, jobs, q, mlog.NewNop())

	msg := &mmodel.QueueMessage{
		MessageID:    "m1",
		ReceiveCount: 4,
		Body:         mmodel.QueueMessageBody{JobID: "job-1", FileName: "a.js", FileContent: []byte("x")},
	}

	h.handleOne(context.Background(), msg)
	h.handleOne(context.Background(), msg)

	list, err := entries.List(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// L2: retry(dlq_id) resends the original body and increments retry_count,
// and resets the owning job to "retrying".
func TestRetry_ResendsAndIncrementsRetryCount(t *testing.T) {
	job := &mmodel.Job{ID: "job-2", Status: mmodel.StatusDLQ}
	jobs := newFakeJobStore(job)
	entries := newFakeEntryStore()
	q := &fakeQueue{}
	h := New(entries, jobs, q, mlog.NewNop())

	entry := &mmodel.DLQEntry{
		ID:                "dlq-1",
		JobID:             "job-2",
		MessageID:         "m2",
		Body:              mmodel.QueueMessageBody{JobID: "job-2", FileName: "a.js"},
		FinalReceiveCount: 3,
	}
	require.NoError(t, entries.InsertIfAbsent(context.Background(), entry))

	require.NoError(t, h.Retry(context.Background(), "dlq-1"))

	require.Len(t, q.resentTo, 1)
	assert.Equal(t, "job-2", q.resentTo[0].JobID)

	got, err := entries.Get(context.Background(), "dlq-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)

	gotJob, err := jobs.Get(context.Background(), "job-2")
	require.NoError(t, err)
	assert.Equal(t, mmodel.StatusRetrying, gotJob.Status)
}

// L3: resolve(dlq_id, reason) is idempotent.
func TestResolve_Idempotent(t *testing.T) {
	entries := newFakeEntryStore()
	h := New(entries, nil, nil, mlog.NewNop())

	entry := &mmodel.DLQEntry{ID: "dlq-1", MessageID: "m1"}
	require.NoError(t, entries.InsertIfAbsent(context.Background(), entry))

	require.NoError(t, h.Resolve(context.Background(), "dlq-1", "handled manually"))
	require.NoError(t, h.Resolve(context.Background(), "dlq-1", "handled manually"))

	got, err := entries.Get(context.Background(), "dlq-1")
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, "handled manually", got.ResolutionReason)
}
