package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, kept narrow so tests
// can substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. The
// drive loop hits these once per chunk.
var preparedStatements = map[string]string{
	"insert_chunk_run": `INSERT INTO chunk_runs (id, session_id, start_offset, chunk_size, status, stats, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"next_offset":      `SELECT MAX(start_offset + chunk_size) FROM chunk_runs WHERE session_id = $1 AND status = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS chunk_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id   TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	chunk_size   INTEGER NOT NULL,
	status       TEXT NOT NULL,
	stats        JSONB NOT NULL,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunk_runs_session ON chunk_runs(session_id);
CREATE INDEX IF NOT EXISTS idx_chunk_runs_status ON chunk_runs(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordChunk(ctx context.Context, record model.RunRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(record.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chunk_runs (id, session_id, start_offset, chunk_size, status, stats, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID, record.SessionID, record.Offset, record.ChunkSize,
		string(record.Status), statsJSON, nullString(record.Error), record.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert chunk run")
}

func (s *PostgresStore) NextOffset(ctx context.Context, sessionID string) (int, bool, error) {
	var next *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(start_offset + chunk_size) FROM chunk_runs WHERE session_id = $1 AND status = $2`,
		sessionID, string(model.RunStatusComplete),
	).Scan(&next)
	if err != nil {
		return 0, false, eris.Wrap(err, "postgres: next offset")
	}
	if next == nil {
		return 0, false, nil
	}
	return int(*next), true, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error) {
	query := `SELECT id, session_id, start_offset, chunk_size, status, stats, error, created_at
	          FROM chunk_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SessionID != "" {
		query += fmt.Sprintf(` AND session_id = $%d`, argIdx)
		args = append(args, filter.SessionID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var records []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		var statsJSON []byte
		var errText sql.NullString

		if err := rows.Scan(&r.ID, &r.SessionID, &r.Offset, &r.ChunkSize, &r.Status, &statsJSON, &errText, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk run")
		}
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
		if errText.Valid {
			r.Error = errText.String
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SessionSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	records, err := s.ListRuns(ctx, RunFilter{SessionID: sessionID, Limit: 10000})
	if err != nil {
		return nil, err
	}
	return summarize(sessionID, records), nil
}
