// Package dates validates the 8-digit trade dates the exchanges are
// queried with and converts them to the Republic-of-China calendar the
// OTC exchange expects in its query parameters.
package dates

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const layout = "20060102"

// ErrMalformed is returned when a date does not round-trip through the
// strict YYYYMMDD parse/reformat check. Such a request is rejected before
// any fetch proceeds.
var ErrMalformed = eris.New("dates: malformed date")

// Validate checks that date is a well-formed Gregorian YYYYMMDD string
// and returns it unchanged.
func Validate(date string) (string, error) {
	t, err := time.Parse(layout, date)
	if err != nil || t.Format(layout) != date {
		return "", eris.Wrapf(ErrMalformed, "%q", date)
	}
	return date, nil
}

// ROC converts a validated YYYYMMDD date into Republic-of-China calendar
// components (Gregorian year minus 1911, month, day).
func ROC(date string) (year, month, day int) {
	year, _ = strconv.Atoi(date[0:4])
	month, _ = strconv.Atoi(date[4:6])
	day, _ = strconv.Atoi(date[6:8])
	return year - 1911, month, day
}

// Range returns every calendar date from from to to inclusive, both
// YYYYMMDD. Used by backfills; the caller decides which are trading days.
func Range(from, to string) ([]string, error) {
	if _, err := Validate(from); err != nil {
		return nil, err
	}
	if _, err := Validate(to); err != nil {
		return nil, err
	}
	start, _ := time.Parse(layout, from)
	end, _ := time.Parse(layout, to)
	if end.Before(start) {
		return nil, eris.Errorf("dates: range end %s before start %s", to, from)
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(layout))
	}
	return out, nil
}
