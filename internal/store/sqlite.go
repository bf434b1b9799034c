package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/twmarket-cli/internal/market"
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

var sqliteMigration = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS stocks (
	sid  TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	%s,
	PRIMARY KEY (sid, date)
);

CREATE TABLE IF NOT EXISTS fetch_runs (
	id          TEXT PRIMARY KEY,
	date        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	rows        INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_quotes_date ON quotes(date);
CREATE INDEX IF NOT EXISTS idx_fetch_runs_date ON fetch_runs(date);
`, sqliteQuoteColumnDefs())

// sqliteQuoteColumnDefs renders the quotes column definitions from the
// canonical layout, so the table and the layout cannot drift apart.
func sqliteQuoteColumnDefs() string {
	defs := make([]string, len(quoteColumns))
	for i, col := range quoteColumns {
		typ := "INTEGER"
		switch {
		case textColumns[col]:
			typ = "TEXT"
		case floatColumns[col]:
			typ = "REAL"
		}
		defs[i] = fmt.Sprintf("%q %s", col, typ)
	}
	return strings.Join(defs, ",\n\t")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplaceDay(ctx context.Context, date string, rows []market.Row) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE date = ?`, date); err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete day %s", date)
	}

	quoted := make([]string, len(quoteColumns))
	for i, col := range quoteColumns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	insert := fmt.Sprintf(
		"INSERT INTO quotes (%s) VALUES (%s)",
		strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(quoteColumns)), ", "),
	)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(row)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert quote %s %s", row.SID(), date)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return n, nil
}

func (s *SQLiteStore) UpsertStocks(ctx context.Context, rows []market.Row) (int64, error) {
	stocks := stockRows(rows)
	if len(stocks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stocks (sid, name) VALUES (?, ?)
		 ON CONFLICT(sid) DO UPDATE SET name = excluded.name`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare stock upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, args := range stocks {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert stock %v", args[0])
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return int64(len(stocks)), nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, date string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_runs (id, date, status, started_at) VALUES (?, ?, ?, ?)`,
		id, date, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, Date: date, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status RunStatus, rows int64, runErr error) error {
	var errMsg any
	if runErr != nil {
		errMsg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE fetch_runs SET status = ?, rows = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), rows, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, status, rows, COALESCE(error, ''), started_at, finished_at
		 FROM fetch_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Date, &status, &r.Rows, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = RunStatus(status)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}
