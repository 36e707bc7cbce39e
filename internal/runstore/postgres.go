package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vk/newsdag/internal/task"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS run_history (
  run_id TEXT PRIMARY KEY,
  dag_id TEXT NOT NULL,
  logical_date TIMESTAMPTZ NOT NULL,
  scheduled_time TIMESTAMPTZ NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL,
  error TEXT NOT NULL DEFAULT '',
  tasks JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_run_history_logical_date ON run_history (logical_date DESC);
`

var errRunIDRequired = errors.New("run_id is required")

// PostgresStore persists run records in a Postgres table.
type PostgresStore struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgres opens a pgx-backed pool and verifies it.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresFromDB(db), nil
}

// NewPostgresFromDB wraps an existing pool.
func NewPostgresFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ensureSchema creates the table on first use. Only success is remembered,
// so a failed attempt is retried by the next call.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	id := strings.TrimSpace(rec.RunID)
	if id == "" {
		return errRunIDRequired
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	tasks, err := json.Marshal(rec.Tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO run_history (
  run_id, dag_id, logical_date, scheduled_time, started_at, finished_at, status, error, tasks
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id)
DO UPDATE SET dag_id=EXCLUDED.dag_id,
  logical_date=EXCLUDED.logical_date,
  scheduled_time=EXCLUDED.scheduled_time,
  started_at=EXCLUDED.started_at,
  finished_at=EXCLUDED.finished_at,
  status=EXCLUDED.status,
  error=EXCLUDED.error,
  tasks=EXCLUDED.tasks`,
		id, rec.DAGID, rec.LogicalDate, rec.ScheduledTime, rec.StartedAt, rec.FinishedAt,
		string(rec.Status), rec.Error, string(tasks),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", id, err)
	}
	return nil
}

const selectColumns = `run_id, dag_id, logical_date, scheduled_time, started_at, finished_at, status, error, tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	var tasks []byte
	err := row.Scan(
		&rec.RunID,
		&rec.DAGID,
		&rec.LogicalDate,
		&rec.ScheduledTime,
		&rec.StartedAt,
		&rec.FinishedAt,
		&status,
		&rec.Error,
		&tasks,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Status = task.Status(status)
	if len(tasks) > 0 {
		if err := json.Unmarshal(tasks, &rec.Tasks); err != nil {
			return Record{}, fmt.Errorf("decode tasks of %s: %w", rec.RunID, err)
		}
	}
	return rec, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, runID string) (Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return Record{}, fmt.Errorf("ensure schema: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM run_history WHERE run_id = $1`, strings.TrimSpace(runID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	query := `SELECT ` + selectColumns + ` FROM run_history ORDER BY logical_date DESC, run_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
