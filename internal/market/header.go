package market

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/parse"
)

// headerIndex maps raw column names to positions, built once per payload.
// Cells are always looked up by header name, never by fixed position:
// column order and count vary between eras, and a missing expected name is
// schema drift, not a zero.
type headerIndex struct {
	source   Source
	category Category
	pos      map[string]int
}

func newHeaderIndex(s Source, c Category, fields []string) headerIndex {
	pos := make(map[string]int, len(fields))
	for i, f := range fields {
		pos[f] = i
	}
	return headerIndex{source: s, category: c, pos: pos}
}

// cell returns the cleaned cell under the named raw column.
func (h headerIndex) cell(row []parse.Value, name string) (parse.Value, error) {
	i, ok := h.pos[name]
	if !ok {
		return parse.Value{}, &SchemaDriftError{Source: h.source, Category: h.category, Column: name}
	}
	if i >= len(row) {
		return parse.Value{}, eris.Wrapf(ErrIncompletePayload, "row has %d cells, column %q is #%d", len(row), name, i)
	}
	return row[i], nil
}

// cells resolves several named columns at once, in order.
func (h headerIndex) cells(row []parse.Value, names ...string) ([]parse.Value, error) {
	out := make([]parse.Value, len(names))
	for i, name := range names {
		v, err := h.cell(row, name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// sum resolves two named columns and adds them, for eras that split one
// canonical field across two raw columns.
func (h headerIndex) sum(row []parse.Value, a, b string) (parse.Value, error) {
	va, err := h.cell(row, a)
	if err != nil {
		return parse.Value{}, err
	}
	vb, err := h.cell(row, b)
	if err != nil {
		return parse.Value{}, err
	}
	v, err := parse.SumValues(va, vb)
	if err != nil {
		return parse.Value{}, eris.Wrapf(err, "summing %q + %q", a, b)
	}
	return v, nil
}
