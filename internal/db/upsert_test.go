package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "stocks",
		Columns:      []string{"sid", "name"},
		ConflictKeys: []string{"sid"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "stocks",
		ConflictKeys: []string{"sid"},
	}, [][]any{{"2330", "台積電"}})
	assert.ErrorContains(t, err, "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "stocks",
		Columns: []string{"sid", "name"},
	}, [][]any{{"2330", "台積電"}})
	assert.ErrorContains(t, err, "no conflict keys specified")
}

func TestBulkUpsert_MergesThroughTempTable(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_stocks"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_stocks"}, []string{"sid", "name"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "stocks" \("sid", "name"\) SELECT "sid", "name" FROM "_tmp_upsert_stocks" ON CONFLICT \("sid"\) DO UPDATE SET "name" = EXCLUDED\."name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "stocks",
		Columns:      []string{"sid", "name"},
		ConflictKeys: []string{"sid"},
	}, [][]any{{"2330", "台積電"}, {"2317", "鴻海"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"sid", "name", "date"`, quoteAndJoin([]string{"sid", "name", "date"}))
	assert.Equal(t, `"sid"`, quoteAndJoin([]string{"sid"}))
}
