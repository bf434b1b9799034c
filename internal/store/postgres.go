package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/db"
	"github.com/sells-group/twmarket-cli/internal/market"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: new pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

var postgresMigration = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS stocks (
	sid  TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	%s,
	PRIMARY KEY (sid, date)
);

CREATE TABLE IF NOT EXISTS fetch_runs (
	id          UUID PRIMARY KEY,
	date        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	rows        BIGINT NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_quotes_date ON quotes(date);
CREATE INDEX IF NOT EXISTS idx_fetch_runs_date ON fetch_runs(date);
`, postgresQuoteColumnDefs())

func postgresQuoteColumnDefs() string {
	defs := make([]string, len(quoteColumns))
	for i, col := range quoteColumns {
		typ := "BIGINT"
		switch {
		case textColumns[col]:
			typ = "TEXT"
		case floatColumns[col]:
			typ = "DOUBLE PRECISION"
		}
		defs[i] = fmt.Sprintf("%s %s", col, typ)
	}
	return strings.Join(defs, ",\n\t")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ReplaceDay(ctx context.Context, date string, rows []market.Row) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM quotes WHERE date = $1`, date); err != nil {
		return 0, eris.Wrapf(err, "postgres: delete day %s", date)
	}

	args := make([][]any, len(rows))
	for i, row := range rows {
		args[i] = rowArgs(row)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"quotes"}, quoteColumns, pgx.CopyFromRows(args))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: copy day %s", date)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit")
	}
	return n, nil
}

func (s *PostgresStore) UpsertStocks(ctx context.Context, rows []market.Row) (int64, error) {
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "stocks",
		Columns:      []string{"sid", "name"},
		ConflictKeys: []string{"sid"},
	}, stockRows(rows))
}

func (s *PostgresStore) CreateRun(ctx context.Context, date string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO fetch_runs (id, date, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, date, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, Date: date, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status RunStatus, rows int64, runErr error) error {
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		errMsg = &msg
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE fetch_runs SET status = $1, rows = $2, error = $3, finished_at = $4 WHERE id = $5`,
		string(status), rows, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, date, status, rows, COALESCE(error, ''), started_at, finished_at
		 FROM fetch_runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var finished *time.Time
		if err := rows.Scan(&r.ID, &r.Date, &status, &r.Rows, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		r.FinishedAt = finished
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}
