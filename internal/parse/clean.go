// Package parse holds the cell-level normalization shared by every
// exchange payload parser: cleaning raw table cells into comparable
// nullable strings, security-id validation, and the small pieces of
// derived-field arithmetic the sources require.
package parse

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Value is a nullable cell value. Monetary and share-count fields travel
// through the pipeline as cleaned strings, not parsed numbers, so the
// source formatting survives until the sink decides what to do with it.
type Value struct {
	S     string
	Valid bool
}

// String returns a valid Value holding s.
func String(s string) Value {
	return Value{S: s, Valid: true}
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// cleanReplacer strips thousands separators, the two decorative glyphs
// TWSE uses to flag foreign/trust securities, and normalizes the spaced
// sign prefixes some tables emit.
var cleanReplacer = strings.NewReplacer(
	",", "",
	"⊕", "",
	"⊙", "",
	"+ ", "+",
	"- ", "-",
)

// Clean normalizes one raw table cell. A run of two or more dashes is the
// sources' "no data" marker and becomes null; everything else has commas,
// decorative glyphs, and sign spacing removed and is trimmed. Clean is
// idempotent: Clean(Clean(x).S) == Clean(x) for every valid result.
func Clean(s string) Value {
	if strings.Contains(s, "--") {
		return Null()
	}
	// A doubled-space sign prefix ("+  1") needs a second pass: each pass
	// strips one space after the sign. Iterate to the fixed point so one
	// Clean call fully normalizes any input.
	out := cleanReplacer.Replace(s)
	for {
		next := cleanReplacer.Replace(out)
		if next == out {
			break
		}
		out = next
	}
	return String(strings.TrimSpace(out))
}

// CleanAll cleans every cell of a raw row.
func CleanAll(row []string) []Value {
	out := make([]Value, len(row))
	for i, s := range row {
		out[i] = Clean(s)
	}
	return out
}

// ValidSecurityID reports whether s is a 4-character security code.
// Shorter and longer ids are index, warrant, subtotal, or footer rows and
// are dropped from parser output.
func ValidSecurityID(s string) bool {
	return len(s) == 4
}

// SumValues adds two cleaned numeric strings, returning the sum as a
// string again. Used where a schema era splits one canonical concept into
// two raw columns (dealer own-account + hedge, foreign ex-dealer +
// foreign dealer).
func SumValues(a, b Value) (Value, error) {
	x, err := intOf(a)
	if err != nil {
		return Null(), err
	}
	y, err := intOf(b)
	if err != nil {
		return Null(), err
	}
	return String(strconv.FormatInt(x+y, 10)), nil
}

func intOf(v Value) (int64, error) {
	if !v.Valid {
		return 0, eris.New("parse: sum of null value")
	}
	n, err := strconv.ParseInt(v.S, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse: not an integer: %q", v.S)
	}
	return n, nil
}
