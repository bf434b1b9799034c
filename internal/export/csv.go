// Package export renders canonical quote rows to file formats. Every
// writer preserves the rows' column order exactly; null values render as
// empty cells.
package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/market"
)

// WriteCSV writes rows as CSV with a header line, in layout order.
func WriteCSV(w io.Writer, rows []market.Row) error {
	if len(rows) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(rows[0].Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	record := make([]string, len(rows[0].Columns))
	for _, row := range rows {
		for i, v := range row.Values {
			record[i] = ""
			if v.Valid {
				record[i] = v.S
			}
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}
