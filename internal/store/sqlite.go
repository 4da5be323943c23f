package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	dry_run     INTEGER NOT NULL DEFAULT 0,
	mode        TEXT NOT NULL DEFAULT 'extract',
	stats       TEXT,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_documents (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	path           TEXT NOT NULL,
	status         TEXT NOT NULL,
	reason         TEXT,
	error          TEXT,
	products_added INTEGER NOT NULL DEFAULT 0,
	soft_errors    INTEGER NOT NULL DEFAULT 0,
	recorded_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_documents_run_id ON run_documents(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, dry_run, mode, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), boolToInt(run.DryRun), run.Mode, run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStatistics, errMsg string) error {
	var statsJSON any
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal stats")
		}
		statsJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), statsJSON, nullStr(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, dry_run, mode, stats, error, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, dry_run, mode, stats, error, started_at, finished_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) RecordDocument(ctx context.Context, runID string, result model.DocumentResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_documents (id, run_id, path, status, reason, error, products_added, soft_errors, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, result.Path, string(result.Status),
		nullStr(result.Reason), nullStr(result.Error),
		result.ProductsAdded, result.SoftErrors, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record document for run %s", runID)
}

func (s *SQLiteStore) ListRunDocuments(ctx context.Context, runID string) ([]model.DocumentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, status, reason, error, products_added, soft_errors
		 FROM run_documents WHERE run_id = ? ORDER BY recorded_at, path`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list documents for run %s", runID)
	}
	defer rows.Close()

	var results []model.DocumentResult
	for rows.Next() {
		var r model.DocumentResult
		var status string
		var reason, errMsg sql.NullString
		if err := rows.Scan(&r.Path, &status, &reason, &errMsg, &r.ProductsAdded, &r.SoftErrors); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document result")
		}
		r.Status = model.DocStatus(status)
		r.Reason = reason.String
		r.Error = errMsg.String
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list documents iterate")
}

// scannable abstracts *sql.Row and *sql.Rows for shared scan logic.
type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var dryRun int
	var statsJSON, errMsg sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &status, &dryRun, &r.Mode, &statsJSON, &errMsg, &r.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("store: run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	r.DryRun = dryRun != 0
	r.Error = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	if statsJSON.Valid && statsJSON.String != "" {
		var stats model.RunStatistics
		if err := json.Unmarshal([]byte(statsJSON.String), &stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
		r.Stats = &stats
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
