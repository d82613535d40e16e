package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobsync/internal/model"
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
CREATE TABLE IF NOT EXISTS chunk_runs (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	chunk_size   INTEGER NOT NULL,
	status       TEXT NOT NULL,
	stats        TEXT NOT NULL,
	error        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_chunk_runs_session ON chunk_runs(session_id);
CREATE INDEX IF NOT EXISTS idx_chunk_runs_status ON chunk_runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordChunk(ctx context.Context, record model.RunRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(record.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunk_runs (id, session_id, start_offset, chunk_size, status, stats, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Offset, record.ChunkSize,
		string(record.Status), string(statsJSON), nullString(record.Error), record.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert chunk run")
}

func (s *SQLiteStore) NextOffset(ctx context.Context, sessionID string) (int, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT MAX(start_offset + chunk_size) FROM chunk_runs
		 WHERE session_id = ? AND status = ?`,
		sessionID, string(model.RunStatusComplete),
	)

	var next sql.NullInt64
	if err := row.Scan(&next); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: next offset")
	}
	if !next.Valid {
		return 0, false, nil
	}
	return int(next.Int64), true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error) {
	query := `SELECT id, session_id, start_offset, chunk_size, status, stats, error, created_at
	          FROM chunk_runs WHERE 1=1`
	var args []any

	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

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

	var records []model.RunRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	records, err := s.ListRuns(ctx, RunFilter{SessionID: sessionID, Limit: 10000})
	if err != nil {
		return nil, err
	}
	return summarize(sessionID, records), nil
}

// helpers

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.RunRecord, error) {
	var r model.RunRecord
	var statsJSON string
	var errText sql.NullString

	err := row.Scan(&r.ID, &r.SessionID, &r.Offset, &r.ChunkSize, &r.Status, &statsJSON, &errText, &r.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan chunk run")
	}

	if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stats")
	}
	if errText.Valid {
		r.Error = errText.String
	}
	return &r, nil
}
