package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_run":      `INSERT INTO runs (id, status, dry_run, mode, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_run":    `UPDATE runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
	"get_run":         `SELECT id, status, dry_run, mode, stats, error, started_at, finished_at FROM runs WHERE id = $1`,
	"insert_document": `INSERT INTO run_documents (id, run_id, path, status, reason, error, products_added, soft_errors, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool creates a PostgresStore over an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	dry_run     BOOLEAN NOT NULL DEFAULT false,
	mode        TEXT NOT NULL DEFAULT 'extract',
	stats       JSONB,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_documents (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	path           TEXT NOT NULL,
	status         TEXT NOT NULL,
	reason         TEXT,
	error          TEXT,
	products_added INTEGER NOT NULL DEFAULT 0,
	soft_errors    INTEGER NOT NULL DEFAULT 0,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_documents_run_id ON run_documents(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, dry_run, mode, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Status), run.DryRun, run.Mode, run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStatistics, errMsg string) error {
	var statsJSON any
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal stats")
		}
		statsJSON = string(b)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), statsJSON, nullStr(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, dry_run, mode, stats, error, started_at, finished_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, dry_run, mode, stats, error, started_at, finished_at FROM runs`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) RecordDocument(ctx context.Context, runID string, result model.DocumentResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_documents (id, run_id, path, status, reason, error, products_added, soft_errors, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), runID, result.Path, string(result.Status),
		nullStr(result.Reason), nullStr(result.Error),
		result.ProductsAdded, result.SoftErrors, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record document for run %s", runID)
}

func (s *PostgresStore) ListRunDocuments(ctx context.Context, runID string) ([]model.DocumentResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, status, reason, error, products_added, soft_errors
		 FROM run_documents WHERE run_id = $1 ORDER BY recorded_at, path`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list documents for run %s", runID)
	}
	defer rows.Close()

	var results []model.DocumentResult
	for rows.Next() {
		var r model.DocumentResult
		var status string
		var reason, errMsg *string
		if err := rows.Scan(&r.Path, &status, &reason, &errMsg, &r.ProductsAdded, &r.SoftErrors); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document result")
		}
		r.Status = model.DocStatus(status)
		r.Reason = deref(reason)
		r.Error = deref(errMsg)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list documents iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var statsJSON, errMsg *string
	var finishedAt *time.Time

	err := row.Scan(&r.ID, &status, &r.DryRun, &r.Mode, &statsJSON, &errMsg, &r.StartedAt, &finishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("store: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.Status = model.RunStatus(status)
	r.Error = deref(errMsg)
	r.FinishedAt = finishedAt
	if statsJSON != nil && *statsJSON != "" {
		var stats model.RunStatistics
		if err := json.Unmarshal([]byte(*statsJSON), &stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
		r.Stats = &stats
	}
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

