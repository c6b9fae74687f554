package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	_ "modernc.org/sqlite"
)

// SQLiteStore хранит задачи в локальном файле SQLite.
// Подходит для запуска api и worker на одной машине без Redis.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает базу и создает схему
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// у SQLite один писатель
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS feed_jobs (
		id TEXT PRIMARY KEY,
		queue TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		state TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		result TEXT,
		error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_feed_jobs_open ON feed_jobs(queue, state, created_at);
	`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, job *jobs.Job) error {
	query := `
		INSERT INTO feed_jobs (id, queue, tenant_id, state, progress, payload, result, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			progress = excluded.progress,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`

	var result interface{}
	if len(job.Result) > 0 {
		result = string(job.Result)
	}

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Queue,
		job.TenantID,
		string(job.State),
		job.Progress,
		string(job.Payload),
		result,
		job.Error,
		job.CreatedAt.UnixNano(),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, queue, tenant_id, state, progress, payload, result, error, created_at, started_at, finished_at
		FROM feed_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) ListOpen(ctx context.Context, queue string) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, queue, tenant_id, state, progress, payload, result, error, created_at, started_at, finished_at
		FROM feed_jobs
		WHERE queue = ? AND state IN (?, ?)
		ORDER BY created_at`, queue, string(jobs.StateQueued), string(jobs.StateRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list open jobs: %w", err)
	}
	defer rows.Close()

	var open []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		open = append(open, job)
	}
	return open, rows.Err()
}

// Ping проверяет доступность базы
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*jobs.Job, error) {
	var (
		job        jobs.Job
		state      string
		payload    string
		result     sql.NullString
		createdAt  int64
		startedAt  sql.NullInt64
		finishedAt sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.Queue, &job.TenantID, &state, &job.Progress, &payload,
		&result, &job.Error, &createdAt, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	job.State = jobs.State(state)
	job.Payload = []byte(payload)
	if result.Valid {
		job.Result = []byte(result.String)
	}
	job.CreatedAt = time.Unix(0, createdAt).UTC()
	job.StartedAt = timeFromNull(startedAt)
	job.FinishedAt = timeFromNull(finishedAt)
	return &job, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, v.Int64).UTC()
	return &t
}
