package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/holiday"
)

// WriteHolidaysJSON writes a holiday list as a JSON array.
func WriteHolidaysJSON(w io.Writer, hs []holiday.Holiday) error {
	if hs == nil {
		hs = []holiday.Holiday{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return eris.Wrap(enc.Encode(hs), "export: write holidays json")
}
