package market

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// NoDataError reports the source's explicit "no records" signal for an
// otherwise valid date: a market holiday (or, for today's date, data not
// yet published). Recoverable; the whole per-source fetch for that date is
// abandoned without producing partial rows.
type NoDataError struct {
	Source   Source
	Category Category
	Date     string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("market: %s %s: no data for %s (market closed)", e.Source, e.Category, e.Date)
}

// UnsupportedEraError reports a request for a date before the category's
// documented availability window (or inside a documented-but-unimplemented
// window). Fatal: the data cannot exist, so the request is a caller bug.
type UnsupportedEraError struct {
	Source   Source
	Category Category
	Date     string
	Earliest string
}

func (e *UnsupportedEraError) Error() string {
	return fmt.Sprintf("market: %s %s: date %s not supported (earliest %s)",
		e.Source, e.Category, e.Date, e.Earliest)
}

// SchemaDriftError reports a payload whose header set lacks a column the
// selected era's parser expects: the source changed format without the era
// table being updated. Fatal and loud, never papered over with fill values.
type SchemaDriftError struct {
	Source   Source
	Category Category
	Column   string
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("market: %s %s: expected column %q missing from payload (schema drift)",
		e.Source, e.Category, e.Column)
}

// ErrIncompletePayload marks a structurally truncated response (missing
// field block, short row). The transport succeeded at the HTTP level but
// the body is unusable; callers treat it like a transport failure and
// retry the fetch.
var ErrIncompletePayload = eris.New("market: incomplete payload")

// IsNoData reports whether err is a holiday / not-yet-published signal.
func IsNoData(err error) bool {
	var e *NoDataError
	return errors.As(err, &e)
}

// IsUnsupported reports whether err is a pre-availability-window request.
func IsUnsupported(err error) bool {
	var e *UnsupportedEraError
	return errors.As(err, &e)
}

// IsSchemaDrift reports whether err signals upstream format drift.
func IsSchemaDrift(err error) bool {
	var e *SchemaDriftError
	return errors.As(err, &e)
}
