package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// PostgresConnection is a hub which deals with Postgres connections,
// following the same connect-once-and-share shape as the cache and queue
// connections.
type PostgresConnection struct {
	ConnectionString string
	Pool             *pgxpool.Pool
	Logger           mlog.Logger
}

// Connect establishes the pool and pings it.
func (pc *PostgresConnection) Connect(ctx context.Context) error {
	pc.Logger.Info("connecting to postgres...")

	pool, err := pgxpool.New(ctx, pc.ConnectionString)
	if err != nil {
		return fmt.Errorf("jobstore: open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("jobstore: ping: %w", err)
	}

	pc.Logger.Info("connected to postgres")
	pc.Pool = pool

	return nil
}

func (pc *PostgresConnection) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	if pc.Pool == nil {
		if err := pc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return pc.Pool, nil
}

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct {
	conn *PostgresConnection
}

// NewPostgresStore returns a new instance of PostgresStore using the given
// Postgres connection.
func NewPostgresStore(conn *PostgresConnection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Create(ctx context.Context, job *mmodel.Job) error {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return err
	}

	var resultJSON []byte

	if job.Result != nil {
		resultJSON, err = json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("jobstore: encode result: %w", err)
		}
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO review_jobs (
			id, user_id, code_hash, file_name, file_content, status, result,
			cache_hit, attempts, created_at, completed_at, processing_time_ms
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		job.ID, job.Owner, job.Fingerprint, job.FileName, job.FileContent, job.Status,
		nullableJSON(resultJSON), job.CacheHit, job.Attempts, job.CreatedAt, job.CompletedAt, job.ProcessingTimeMS,
	)
	if err != nil {
		return fmt.Errorf("jobstore: create job %s: %w", job.ID, err)
	}

	return nil
}

// MarkProcessing guards against regressing a completed job: the WHERE
// clause only matches rows whose status is not already "complete", so a
// redelivered message that raced a prior successful completion is a no-op
// here; the row is then re-read and its current status returned, so the
// caller can see that fact.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string, attempts int) (mmodel.Status, error) {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return "", err
	}

	tag, err := pool.Exec(ctx, `
		UPDATE review_jobs SET status = $2, attempts = $3
		WHERE id = $1 AND status <> $4`,
		id, mmodel.StatusProcessing, attempts, mmodel.StatusComplete,
	)
	if err != nil {
		return "", fmt.Errorf("jobstore: mark processing %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		job, err := s.Get(ctx, id)
		if err != nil {
			return "", err
		}

		return job.Status, nil
	}

	return mmodel.StatusProcessing, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string, report *mmodel.Report, durationMS int64, attempts int) error {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return err
	}

	resultJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("jobstore: encode result: %w", err)
	}

	_, err = pool.Exec(ctx, `
		UPDATE review_jobs SET
			status = $2, result = $3, processing_time_ms = $4, attempts = $5,
			completed_at = $6, last_error = NULL
		WHERE id = $1`,
		id, mmodel.StatusComplete, resultJSON, durationMS, attempts, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("jobstore: complete job %s: %w", id, err)
	}

	return nil
}

func (s *PostgresStore) MarkRetrying(ctx context.Context, id string, attempts int, lastError string) error {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		UPDATE review_jobs SET status = $2, attempts = $3, last_error = $4
		WHERE id = $1 AND status <> $5`,
		id, mmodel.StatusRetrying, attempts, lastError, mmodel.StatusComplete,
	)
	if err != nil {
		return fmt.Errorf("jobstore: mark retrying %s: %w", id, err)
	}

	return nil
}

func (s *PostgresStore) MarkDLQ(ctx context.Context, id string, dlqMessageID string, lastError string) error {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		UPDATE review_jobs SET status = $2, dlq_message_id = $3, dlq_moved_at = $4, last_error = $5
		WHERE id = $1 AND status <> $6`,
		id, mmodel.StatusDLQ, dlqMessageID, time.Now().UTC(), lastError, mmodel.StatusComplete,
	)
	if err != nil {
		return fmt.Errorf("jobstore: mark dlq %s: %w", id, err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*mmodel.Job, error) {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, `
		SELECT id, user_id, code_hash, file_name, file_content, status, result,
		       cache_hit, attempts, last_error, dlq_message_id, dlq_moved_at,
		       created_at, completed_at, processing_time_ms
		FROM review_jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("jobstore: get job %s: %w", id, err)
	}

	return job, nil
}

func (s *PostgresStore) GetByFingerprint(ctx context.Context, fp string) ([]*mmodel.Job, error) {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, user_id, code_hash, file_name, file_content, status, result,
		       cache_hit, attempts, last_error, dlq_message_id, dlq_moved_at,
		       created_at, completed_at, processing_time_ms
		FROM review_jobs WHERE code_hash = $1 ORDER BY created_at DESC`, fp)
	if err != nil {
		return nil, fmt.Errorf("jobstore: get by fingerprint: %w", err)
	}
	defer rows.Close()

	var jobs []*mmodel.Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: scan job by fingerprint: %w", err)
		}

		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (s *PostgresStore) History(ctx context.Context, owner string, limit int) ([]mmodel.JobSummary, error) {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select(
		"id", "file_name", "status", "cache_hit", "processing_time_ms", "created_at", "result",
	).From("review_jobs").
		Where(sq.Eq{"user_id": owner}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("jobstore: build history query: %w", err)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobstore: history for %s: %w", owner, err)
	}
	defer rows.Close()

	var summaries []mmodel.JobSummary

	for rows.Next() {
		var (
			sum        mmodel.JobSummary
			resultJSON []byte
		)

		if err := rows.Scan(&sum.ID, &sum.FileName, &sum.Status, &sum.CacheHit,
			&sum.ProcessingTimeMS, &sum.CreatedAt, &resultJSON); err != nil {
			return nil, fmt.Errorf("jobstore: scan history row: %w", err)
		}

		if len(resultJSON) > 0 {
			var report mmodel.Report
			if err := json.Unmarshal(resultJSON, &report); err == nil {
				sum.IssuesFound = report.IssueCount()
			}
		}

		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status mmodel.Status) (int, error) {
	pool, err := s.conn.getPool(ctx)
	if err != nil {
		return 0, err
	}

	query, args, err := sq.Select("COUNT(*)").From("review_jobs").
		Where(sq.Eq{"status": status}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("jobstore: build count query: %w", err)
	}

	var count int
	if err := pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("jobstore: count by status %s: %w", status, err)
	}

	return count, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*mmodel.Job, error) {
	var (
		job        mmodel.Job
		resultJSON []byte
	)

	if err := row.Scan(
		&job.ID, &job.Owner, &job.Fingerprint, &job.FileName, &job.FileContent, &job.Status,
		&resultJSON, &job.CacheHit, &job.Attempts, &job.LastError, &job.DLQMessageID, &job.DLQMovedAt,
		&job.CreatedAt, &job.CompletedAt, &job.ProcessingTimeMS,
	); err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		var report mmodel.Report
		if err := json.Unmarshal(resultJSON, &report); err == nil {
			job.Result = &report
		}
	}

	return &job, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return b
}
