package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Change is the derived daily price movement for one security: the signed
// change amount and the percentage change against the previous close.
// Eras whose raw schema carries no delta column simply do not report it.
type Change struct {
	Amount Value
	Ratio  string
}

// exDividendMarkers are the non-numeric values the OTC exchange places in
// its delta column on ex-dividend / ex-rights days.
var exDividendMarkers = map[string]bool{
	"除息":  true,
	"除權":  true,
	"除權息": true,
}

var signMarkup = regexp.MustCompile(`<\s*p[^>]*>(.*?)<\s*/\s*p>`)

// SignFromMarkup extracts the up/down sign the main-board exchange embeds
// as an HTML fragment in its 漲跌(+/-) column. Returns "" when the cell
// carries no sign (unchanged, or ex-dividend day).
func SignFromMarkup(s string) string {
	m := signMarkup.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// ChangeAmount combines an extracted sign with the raw delta field.
func ChangeAmount(sign string, delta Value) Value {
	if !delta.Valid {
		return Null()
	}
	return String(sign + delta.S)
}

// ChangeRatio derives the percentage change: amount / (close - amount) * 100,
// rounded to two decimals and rendered as text. A zero amount short-circuits
// to itself, matching the source convention of reporting "0.00" unchanged.
func ChangeRatio(amount Value, close Value) (string, error) {
	if !amount.Valid || !close.Valid {
		return "", eris.New("parse: change ratio of null value")
	}
	if amount.S == "0.00" {
		return amount.S, nil
	}
	delta, err := strconv.ParseFloat(amount.S, 64)
	if err != nil {
		return "", eris.Wrapf(err, "parse: change amount %q", amount.S)
	}
	last, err := strconv.ParseFloat(close.S, 64)
	if err != nil {
		return "", eris.Wrapf(err, "parse: close price %q", close.S)
	}
	prev := last - delta
	if prev == 0 {
		return "", eris.Errorf("parse: zero previous close for amount %q", amount.S)
	}
	return formatRatio(round2(delta / prev * 100)), nil
}

// formatRatio renders a rounded ratio with its shortest decimal form but
// always at least one decimal place, so a whole-percent move reads "1.0"
// rather than "1".
func formatRatio(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ExDividend reports whether the raw delta cell is one of the exchange's
// ex-dividend / ex-rights markers (or was cleaned to null). Such rows map
// to a null change amount and a "0.00" ratio.
func ExDividend(delta Value) bool {
	return !delta.Valid || exDividendMarkers[delta.S]
}

func round2(f float64) float64 {
	if f < 0 {
		return float64(int64(f*100-0.5)) / 100
	}
	return float64(int64(f*100+0.5)) / 100
}
