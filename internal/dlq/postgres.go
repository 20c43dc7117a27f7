package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/rshsreehari/coderev-platform/internal/jobstore"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// PostgresEntryStore is the pgx-backed implementation of EntryStore,
// sharing its connection pool with jobstore.PostgresStore.
type PostgresEntryStore struct {
	conn *jobstore.PostgresConnection
}

// NewPostgresEntryStore returns a new instance of PostgresEntryStore.
func NewPostgresEntryStore(conn *jobstore.PostgresConnection) *PostgresEntryStore {
	return &PostgresEntryStore{conn: conn}
}

var _ EntryStore = (*PostgresEntryStore)(nil)

// InsertIfAbsent is idempotent by message_id: a conflicting insert is
// silently ignored, since the DLQ Handler may observe the same message
// more than once across restarts (§4.8).
func (s *PostgresEntryStore) InsertIfAbsent(ctx context.Context, entry *mmodel.DLQEntry) error {
	if s.conn.Pool == nil {
		return fmt.Errorf("dlq: postgres pool not connected")
	}

	bodyJSON, err := json.Marshal(entry.Body)
	if err != nil {
		return fmt.Errorf("dlq: encode body: %w", err)
	}

	_, err = s.conn.Pool.Exec(ctx, `
		INSERT INTO dlq_messages (
			id, job_id, message_id, body, final_receive_count, last_error, moved_to_dlq_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (message_id) DO NOTHING`,
		entry.ID, entry.JobID, entry.MessageID, bodyJSON, entry.FinalReceiveCount, entry.LastError, entry.MovedAt,
	)
	if err != nil {
		return fmt.Errorf("dlq: insert entry: %w", err)
	}

	return nil
}

func (s *PostgresEntryStore) List(ctx context.Context, resolved *bool, limit, offset int) ([]mmodel.DLQEntry, error) {
	builder := sq.Select(
		"id", "job_id", "message_id", "body", "final_receive_count", "last_error",
		"moved_to_dlq_at", "retry_count", "resolved", "resolved_at", "resolution_reason",
	).From("dlq_messages").OrderBy("moved_to_dlq_at DESC").PlaceholderFormat(sq.Dollar)

	if resolved != nil {
		builder = builder.Where(sq.Eq{"resolved": *resolved})
	}

	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("dlq: build list query: %w", err)
	}

	rows, err := s.conn.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dlq: list: %w", err)
	}
	defer rows.Close()

	var out []mmodel.DLQEntry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("dlq: scan entry: %w", err)
		}

		out = append(out, *entry)
	}

	return out, rows.Err()
}

func (s *PostgresEntryStore) Get(ctx context.Context, id string) (*mmodel.DLQEntry, error) {
	row := s.conn.Pool.QueryRow(ctx, `
		SELECT id, job_id, message_id, body, final_receive_count, last_error,
		       moved_to_dlq_at, retry_count, resolved, resolved_at, resolution_reason
		FROM dlq_messages WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("dlq: get %s: %w", id, err)
	}

	return entry, nil
}

func (s *PostgresEntryStore) Stats(ctx context.Context) (*mmodel.DLQStats, error) {
	var stats mmodel.DLQStats

	err := s.conn.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT resolved),
			COUNT(DISTINCT job_id),
			MAX(moved_to_dlq_at),
			COALESCE(AVG(retry_count), 0)
		FROM dlq_messages`,
	).Scan(&stats.Total, &stats.Unresolved, &stats.UniqueJobCount, &stats.LatestMovedAt, &stats.AverageRetryCount)
	if err != nil {
		return nil, fmt.Errorf("dlq: stats: %w", err)
	}

	return &stats, nil
}

func (s *PostgresEntryStore) Resolve(ctx context.Context, id, reason string) error {
	_, err := s.conn.Pool.Exec(ctx, `
		UPDATE dlq_messages SET resolved = TRUE, resolved_at = now(), resolution_reason = $2
		WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("dlq: resolve %s: %w", id, err)
	}

	return nil
}

func (s *PostgresEntryStore) IncrementRetryCount(ctx context.Context, id string) error {
	_, err := s.conn.Pool.Exec(ctx, `UPDATE dlq_messages SET retry_count = retry_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("dlq: increment retry count %s: %w", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*mmodel.DLQEntry, error) {
	var (
		entry    mmodel.DLQEntry
		bodyJSON []byte
	)

	if err := row.Scan(
		&entry.ID, &entry.JobID, &entry.MessageID, &bodyJSON, &entry.FinalReceiveCount, &entry.LastError,
		&entry.MovedAt, &entry.RetryCount, &entry.Resolved, &entry.ResolvedAt, &entry.ResolutionReason,
	); err != nil {
		return nil, err
	}

	if len(bodyJSON) > 0 {
		_ = json.Unmarshal(bodyJSON, &entry.Body)
	}

	return &entry, nil
}
