package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/market"
)

// WriteJSON writes rows as a JSON array of objects keyed by column name.
// Null cells serialize as JSON null rather than empty strings, so a
// consumer can tell "no value" from "empty".
func WriteJSON(w io.Writer, rows []market.Row) error {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		obj := make(map[string]any, len(row.Columns))
		for j, col := range row.Columns {
			v := row.Values[j]
			if v.Valid {
				obj[col] = v.S
			} else {
				obj[col] = nil
			}
		}
		out[i] = obj
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(out), "export: write json")
}
