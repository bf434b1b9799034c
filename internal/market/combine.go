package market

import (
	"sort"
	"strconv"

	"github.com/sells-group/twmarket-cli/internal/parse"
)

// Combine merges the per-category records of one (source, date) fetch
// into canonical rows. Security ids present in the price record drive the
// output; ids absent from an optional category receive "0" for every
// column of that category, and eras whose raw schema is a subset of the
// canonical one have their trailing fields filled the same way. When no
// optional category was requested the pad value is null instead, so a
// price-only export carries no fabricated zeros.
func Combine(date string, source Source, price, investors, credit *CategoryRecord) []Row {
	columns := Layout(investors != nil, credit != nil)
	fill := parse.String("0")
	if investors == nil && credit == nil {
		fill = parse.Null()
	}

	sids := make([]string, 0, len(price.Values))
	for sid := range price.Values {
		sids = append(sids, sid)
	}
	sort.Strings(sids)

	category := parse.String(strconv.Itoa(int(source)))
	rows := make([]Row, 0, len(sids))
	for _, sid := range sids {
		vals := make([]parse.Value, 0, len(columns))
		vals = append(vals, parse.String(date), category)
		vals = appendSection(vals, price.Values[sid], len(priceColumns), fill)
		if investors != nil {
			vals = appendSection(vals, investors.Values[sid], len(investorColumns), fill)
		}
		if credit != nil {
			vals = appendSection(vals, credit.Values[sid], len(creditColumns), fill)
		}
		rows = append(rows, Row{Columns: columns, Values: vals})
	}
	return rows
}

// appendSection appends one category's values padded (or truncated) to
// the category's canonical width, so a missing or subset record can never
// shift a later category's values out of their columns.
func appendSection(vals, section []parse.Value, width int, fill parse.Value) []parse.Value {
	for i := 0; i < width; i++ {
		if i < len(section) {
			vals = append(vals, section[i])
		} else {
			vals = append(vals, fill)
		}
	}
	return vals
}
