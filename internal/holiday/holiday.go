// Package holiday retrieves the main-board exchange's published holiday
// schedule, one CSV per Republic-of-China calendar year.
package holiday

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const scheduleURL = "https://www.twse.com.tw/holidaySchedule/holidaySchedule"

// earliestYear is the first year the exchange published a schedule.
const earliestYear = 2002

// Holiday is one non-trading day.
type Holiday struct {
	Date        string `json:"date"` // YYYYMMDD
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Getter fetches one URL with query parameters.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error)
}

// Service fetches and parses holiday schedules.
type Service struct {
	transport Getter
}

// NewService builds a Service over the given transport.
func NewService(t Getter) *Service {
	return &Service{transport: t}
}

// FetchYear retrieves the holiday schedule for one calendar year.
func (s *Service) FetchYear(ctx context.Context, year int) ([]Holiday, error) {
	if year < earliestYear {
		return nil, eris.Errorf("holiday: no schedule published before %d (got %d)", earliestYear, year)
	}
	body, err := s.transport.Get(ctx, scheduleURL, url.Values{
		"response":  {"csv"},
		"queryYear": {strconv.Itoa(year - 1911)},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "holiday: fetch year %d", year)
	}
	return parseSchedule(year, body)
}

// FetchRange retrieves the schedules for every year in [from, to].
func (s *Service) FetchRange(ctx context.Context, from, to int) ([]Holiday, error) {
	var all []Holiday
	for year := from; year <= to; year++ {
		hs, err := s.FetchYear(ctx, year)
		if err != nil {
			return nil, err
		}
		all = append(all, hs...)
	}
	return all, nil
}

// parseSchedule decodes one year's CSV. The first line is a title, the
// second the header; a row's date cell can carry several dates run
// together (consecutive holidays share one name), each expanded into its
// own Holiday.
func parseSchedule(year int, body []byte) ([]Holiday, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "holiday: parse csv for %d", year)
	}
	if len(records) < 2 {
		return nil, eris.Errorf("holiday: schedule for %d has no header", year)
	}

	header := records[1]
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"日期", "名稱", "說明"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("holiday: schedule for %d missing column %q", year, required)
		}
	}

	var holidays []Holiday
	for _, row := range records[2:] {
		if len(row) <= cols["說明"] {
			continue
		}
		name := strings.TrimSpace(row[cols["名稱"]])
		desc := strings.TrimSpace(row[cols["說明"]])
		for _, d := range splitDates(row[cols["日期"]]) {
			date, err := chineseDate(year, d)
			if err != nil {
				return nil, err
			}
			holidays = append(holidays, Holiday{Date: date, Name: name, Description: desc})
		}
	}
	return holidays, nil
}

// splitDates expands a run-together date cell like "1月1日1月2日" into its
// individual "M月D日" entries.
func splitDates(cell string) []string {
	var out []string
	for _, part := range strings.Split(strings.TrimSpace(cell), "日") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part+"日")
	}
	return out
}

// chineseDate converts "1月21日" in the given year to YYYYMMDD.
func chineseDate(year int, s string) (string, error) {
	rest, ok := strings.CutSuffix(s, "日")
	if !ok {
		return "", eris.Errorf("holiday: malformed date %q", s)
	}
	monthStr, dayStr, ok := strings.Cut(rest, "月")
	if !ok {
		return "", eris.Errorf("holiday: malformed date %q", s)
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil || month < 1 || month > 12 {
		return "", eris.Errorf("holiday: malformed month in %q", s)
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayStr))
	if err != nil || day < 1 || day > 31 {
		return "", eris.Errorf("holiday: malformed day in %q", s)
	}
	return fmt.Sprintf("%d%02d%02d", year, month, day), nil
}
