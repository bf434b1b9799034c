package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/twmarket-cli/internal/parse"
)

func priceRecord(sids ...string) *CategoryRecord {
	rec := newCategoryRecord()
	for _, sid := range sids {
		rec.Values[sid] = []parse.Value{
			parse.String(sid), parse.String("name-" + sid),
			parse.String("100"), parse.String("105"), parse.String("99"), parse.String("102"),
			parse.String("1000"), parse.String("10"), parse.String("102000"),
		}
	}
	return rec
}

func investorRecord(sids ...string) *CategoryRecord {
	rec := newCategoryRecord()
	for _, sid := range sids {
		vals := make([]parse.Value, len(investorColumns))
		for i := range vals {
			vals[i] = parse.String("5")
		}
		rec.Values[sid] = vals
	}
	return rec
}

func TestCombine_PriceOnly(t *testing.T) {
	rows := Combine("20240102", TWSE, priceRecord("2330"), nil, nil)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, Layout(false, false), row.Columns)
	assert.Len(t, row.Values, len(row.Columns))

	date, _ := row.Get("date")
	assert.Equal(t, "20240102", date.S)
	cat, _ := row.Get("category")
	assert.Equal(t, "1", cat.S)
	assert.Equal(t, "2330", row.SID())
	close, _ := row.Get("close")
	assert.Equal(t, "102", close.S)

	_, ok := row.Get("margin_purchase")
	assert.False(t, ok, "credit columns must be absent from a price-only layout")
}

func TestCombine_MissingOptionalFilledWithZeros(t *testing.T) {
	price := priceRecord("2317", "2330")
	investors := investorRecord("2330")

	rows := Combine("20240102", TWSE, price, investors, nil)
	require.Len(t, rows, 2)

	// Sorted by sid: 2317 first.
	assert.Equal(t, "2317", rows[0].SID())
	assert.Equal(t, "2330", rows[1].SID())

	for _, col := range investorColumns {
		v, ok := rows[0].Get(col)
		require.True(t, ok)
		assert.True(t, v.Valid)
		assert.Equal(t, "0", v.S, "sid absent from investors must get %q = 0", col)
	}
	for _, col := range investorColumns {
		v, _ := rows[1].Get(col)
		assert.Equal(t, "5", v.S)
	}
}

func TestCombine_SubsetEraPadded(t *testing.T) {
	// An era whose raw schema lacks the trailing credit columns must not
	// shift a later row's values: the section is padded to canonical width.
	price := priceRecord("2330")
	credit := newCategoryRecord()
	credit.Values["2330"] = []parse.Value{parse.String("1"), parse.String("2")}

	rows := Combine("20240102", TWSE, price, nil, credit)
	require.Len(t, rows, 1)

	mp, _ := rows[0].Get("margin_purchase")
	assert.Equal(t, "1", mp.S)
	ms, _ := rows[0].Get("margin_sales")
	assert.Equal(t, "2", ms.S)
	note, _ := rows[0].Get("note")
	assert.Equal(t, "0", note.S)
}

func TestCombine_SourceDrivesCategoryColumn(t *testing.T) {
	rows := Combine("20240102", TPEX, priceRecord("5483"), nil, nil)
	require.Len(t, rows, 1)
	cat, _ := rows[0].Get("category")
	assert.Equal(t, "2", cat.S)
}

func TestCombine_LayoutShapes(t *testing.T) {
	tests := []struct {
		investors, credit bool
		want              int
	}{
		{false, false, 2 + 9},
		{true, false, 2 + 9 + 10},
		{false, true, 2 + 9 + 12},
		{true, true, 2 + 9 + 10 + 12},
	}
	for _, tt := range tests {
		assert.Len(t, Layout(tt.investors, tt.credit), tt.want)
	}
}

func TestCombine_OnlyOptionalEnabledStaysNumeric(t *testing.T) {
	// With any optional category enabled, pads are "0", not null: the
	// export stays numerically well-typed column by column.
	rows := Combine("20240102", TWSE, priceRecord("2330"), investorRecord(), nil)
	require.Len(t, rows, 1)
	total, _ := rows[0].Get("institutional_investors_total")
	assert.True(t, total.Valid)
	assert.Equal(t, "0", total.S)
}
