package store

import (
	"strconv"

	"github.com/sells-group/twmarket-cli/internal/market"
	"github.com/sells-group/twmarket-cli/internal/parse"
)

// quoteColumns is the full quotes-table column list: the widest canonical
// layout. Fetches that skipped an optional category leave its columns NULL.
var quoteColumns = market.Layout(true, true)

// floatColumns are stored as REAL / double precision.
var floatColumns = map[string]bool{
	"open": true, "high": true, "low": true, "close": true,
}

// textColumns keep the cleaned string as-is.
var textColumns = map[string]bool{
	"date": true, "sid": true, "name": true, "note": true,
}

// sqlValue converts one canonical cell into its SQL argument. Null cells
// and cells that fail numeric parsing both become NULL: the raw string
// variants the sources emit for "no value" are not worth distinguishing
// at the sink.
func sqlValue(column string, v parse.Value) any {
	if !v.Valid {
		return nil
	}
	switch {
	case textColumns[column]:
		return v.S
	case floatColumns[column]:
		f, err := strconv.ParseFloat(v.S, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		n, err := strconv.ParseInt(v.S, 10, 64)
		if err != nil {
			return nil
		}
		return n
	}
}

// rowArgs renders one canonical row as quotes-table arguments, in
// quoteColumns order. Columns missing from the row's layout are NULL.
func rowArgs(row market.Row) []any {
	args := make([]any, len(quoteColumns))
	for i, col := range quoteColumns {
		v, ok := row.Get(col)
		if !ok {
			continue
		}
		args[i] = sqlValue(col, v)
	}
	return args
}

// stockRows extracts the distinct (sid, name) pairs of a row batch.
func stockRows(rows []market.Row) [][]any {
	seen := make(map[string]bool, len(rows))
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		sid := row.SID()
		if sid == "" || seen[sid] {
			continue
		}
		seen[sid] = true
		name, _ := row.Get("name")
		out = append(out, []any{sid, name.S})
	}
	return out
}
