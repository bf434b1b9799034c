package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/market"
	"github.com/sells-group/twmarket-cli/internal/parse"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRow(t *testing.T, date, sid string) market.Row {
	t.Helper()
	price := &market.CategoryRecord{Values: map[string][]parse.Value{
		sid: {
			parse.String(sid), parse.String("測試"),
			parse.String("100.50"), parse.String("101"), parse.String("99.5"), parse.String("100"),
			parse.String("1000"), parse.String("10"), parse.String("100000"),
		},
	}}
	rows := market.Combine(date, market.TWSE, price, nil, nil)
	require.Len(t, rows, 1)
	return rows[0]
}

func (s *SQLiteStore) countQuotes(t *testing.T, date string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM quotes WHERE date = ?`, date).Scan(&n))
	return n
}

func TestSQLite_ReplaceDay(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ReplaceDay(ctx, "20240102", []market.Row{
		testRow(t, "20240102", "2330"),
		testRow(t, "20240102", "2317"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, st.countQuotes(t, "20240102"))

	// Re-running the same day replaces, never duplicates.
	n, err = st.ReplaceDay(ctx, "20240102", []market.Row{testRow(t, "20240102", "2330")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, st.countQuotes(t, "20240102"))
}

func TestSQLite_ReplaceDay_TypedColumns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ReplaceDay(ctx, "20240102", []market.Row{testRow(t, "20240102", "2330")})
	require.NoError(t, err)

	var open float64
	var capacity int64
	var name string
	require.NoError(t, st.db.QueryRow(
		`SELECT open, capacity, name FROM quotes WHERE sid = ? AND date = ?`, "2330", "20240102",
	).Scan(&open, &capacity, &name))
	assert.InDelta(t, 100.5, open, 0.001)
	assert.Equal(t, int64(1000), capacity)
	assert.Equal(t, "測試", name)

	// Price-only layout leaves the optional columns NULL.
	var note any
	require.NoError(t, st.db.QueryRow(
		`SELECT note FROM quotes WHERE sid = ?`, "2330",
	).Scan(&note))
	assert.Nil(t, note)
}

func TestSQLite_UpsertStocks(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rows := []market.Row{testRow(t, "20240102", "2330"), testRow(t, "20240103", "2330")}
	n, err := st.UpsertStocks(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "duplicate sids collapse")

	var count int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM stocks`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "20240102")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	require.NoError(t, st.FinishRun(ctx, run.ID, RunStatusSucceeded, 1234, nil))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, RunStatusSucceeded, runs[0].Status)
	assert.Equal(t, int64(1234), runs[0].Rows)
	assert.Empty(t, runs[0].Error)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestSQLite_FinishRun_RecordsError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "20240102")
	require.NoError(t, err)

	require.NoError(t, st.FinishRun(ctx, run.ID, RunStatusFailed, 0, eris.New("upstream 502")))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "upstream 502")
}

func TestSQLite_FinishRun_UnknownID(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishRun(context.Background(), "no-such-run", RunStatusSucceeded, 0, nil)
	require.Error(t, err)
}

func TestConvert_SQLValue(t *testing.T) {
	assert.Nil(t, sqlValue("open", parse.Null()))
	assert.Equal(t, 12.5, sqlValue("open", parse.String("12.5")))
	assert.Equal(t, int64(42), sqlValue("capacity", parse.String("42")))
	assert.Equal(t, "O", sqlValue("note", parse.String("O")))
	assert.Nil(t, sqlValue("capacity", parse.String("not-a-number")))
}
