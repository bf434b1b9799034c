// Package market implements the schema normalization engine for Taiwan
// end-of-day equity data: a data-driven table of historical schema eras
// per exchange and data category, one variant parser per era, and a
// combiner that merges the per-category records into canonical rows.
package market

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/parse"
)

// Source identifies an upstream exchange. The numeric values are what the
// canonical "category" column carries, so they are part of the sink format.
type Source int

const (
	TWSE Source = iota + 1 // main board exchange
	TPEX                   // over-the-counter exchange
)

// String returns the lowercase source name.
func (s Source) String() string {
	switch s {
	case TWSE:
		return "twse"
	case TPEX:
		return "tpex"
	default:
		return "unknown"
	}
}

// ParseSource converts a source name into a Source.
func ParseSource(s string) (Source, error) {
	switch s {
	case "twse":
		return TWSE, nil
	case "tpex":
		return TPEX, nil
	default:
		return 0, eris.Errorf("market: unknown source %q (valid: twse, tpex)", s)
	}
}

// Sources lists all supported sources in fetch order.
func Sources() []Source {
	return []Source{TWSE, TPEX}
}

// Category is one of the three data categories each source publishes.
type Category int

const (
	Price Category = iota
	InstitutionalInvestors
	CreditTransactions
)

// String returns the category name used in logs.
func (c Category) String() string {
	switch c {
	case Price:
		return "price"
	case InstitutionalInvestors:
		return "institutional_investors"
	case CreditTransactions:
		return "credit_transactions"
	default:
		return "unknown"
	}
}

// Canonical column layout. The order is fixed and the file sinks depend
// on it; changing it is a format change for every consumer.
var (
	baseColumns = []string{"date", "category"}

	priceColumns = []string{
		"sid", "name",
		"open", "high", "low", "close",
		"capacity", "transaction", "turnover",
	}

	investorColumns = []string{
		"foreign_dealers_buy", "foreign_dealers_sell", "foreign_dealers_total",
		"investment_trust_buy", "investment_trust_sell", "investment_trust_total",
		"dealer_buy", "dealer_sell", "dealer_total",
		"institutional_investors_total",
	}

	creditColumns = []string{
		"margin_purchase", "margin_sales", "margin_cash_redemption",
		"margin_today_balance", "margin_quota",
		"short_covering", "short_sale", "short_stock_redemption",
		"short_today_balance", "short_quota",
		"offsetting_margin_short", "note",
	}
)

// Layout returns the canonical column list for the given enabled-category
// combination. Price is always present; the two optional categories extend
// the layout without reshuffling it.
func Layout(investors, credit bool) []string {
	cols := make([]string, 0, len(baseColumns)+len(priceColumns)+len(investorColumns)+len(creditColumns))
	cols = append(cols, baseColumns...)
	cols = append(cols, priceColumns...)
	if investors {
		cols = append(cols, investorColumns...)
	}
	if credit {
		cols = append(cols, creditColumns...)
	}
	return cols
}

// CategoryRecord is the output of one variant parser: an ordered value
// list per security id, matching the category sub-schema, for a single
// (source, category, date) triple. Price eras that carry a delta column
// also report the derived per-security change beside the record.
type CategoryRecord struct {
	Values  map[string][]parse.Value
	Changes map[string]parse.Change
}

func newCategoryRecord() *CategoryRecord {
	return &CategoryRecord{Values: make(map[string][]parse.Value)}
}

func (r *CategoryRecord) setChange(sid string, c parse.Change) {
	if r.Changes == nil {
		r.Changes = make(map[string]parse.Change)
	}
	r.Changes[sid] = c
}

// Row is one canonical row: a value per layout column, in layout order.
type Row struct {
	Columns []string
	Values  []parse.Value
}

// Get returns the value of the named column.
func (r Row) Get(name string) (parse.Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return parse.Value{}, false
}

// SID returns the row's security id.
func (r Row) SID() string {
	v, _ := r.Get("sid")
	return v.S
}
