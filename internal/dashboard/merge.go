package dashboard

import (
	"errors"
	"time"

	"optionsViewer/internal/thetadata"
)

// OptionSeries is the EOD history of one expiration, dates normalized.
type OptionSeries struct {
	Expiration time.Time
	Rows       []thetadata.EODRow
}

// Label is the series' expiration label.
func (s OptionSeries) Label() string { return FormatExpiration(s.Expiration) }

// FetchResult carries either a fetched series or an unavailable marker
// with the reason. It replaces a failing call for the rest of the pass.
type FetchResult struct {
	Series      OptionSeries
	Unavailable bool
	Reason      error
}

// Available wraps a fetched series.
func Available(s OptionSeries) FetchResult {
	return FetchResult{Series: s}
}

// Unavailable marks exp as having nothing to show for this pass.
func Unavailable(exp time.Time, reason error) FetchResult {
	return FetchResult{Series: OptionSeries{Expiration: exp}, Unavailable: true, Reason: reason}
}

// NoData reports whether the result is unavailable because the source had
// no rows, as opposed to a transport failure.
func (r FetchResult) NoData() bool {
	return r.Unavailable && errors.Is(r.Reason, thetadata.ErrNoData)
}

// Usable reports whether the result has rows to merge.
func (r FetchResult) Usable() bool {
	return !r.Unavailable && len(r.Series.Rows) > 0
}

// MergedRow is one option EOD row tagged with its expiration label.
type MergedRow struct {
	Date       time.Time `json:"date"`
	Expiration string    `json:"expiration"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	Count      int64     `json:"count"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
}

// MergedTable is the row-wise union of the available option series.
type MergedTable struct {
	Rows []MergedRow
}

func (t MergedTable) Empty() bool { return len(t.Rows) == 0 }

// Expirations returns the labels in first-appearance order.
func (t MergedTable) Expirations() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range t.Rows {
		if !seen[r.Expiration] {
			seen[r.Expiration] = true
			out = append(out, r.Expiration)
		}
	}
	return out
}

// Merge concatenates the primary result with any secondary results. An
// unusable primary yields an empty table regardless of the others; unusable
// secondaries are dropped, so a lone primary merges to itself plus its
// expiration label.
func Merge(primary FetchResult, secondary ...FetchResult) MergedTable {
	if !primary.Usable() {
		return MergedTable{}
	}
	n := len(primary.Series.Rows)
	for _, s := range secondary {
		if s.Usable() {
			n += len(s.Series.Rows)
		}
	}
	t := MergedTable{Rows: make([]MergedRow, 0, n)}
	t.Rows = appendTagged(t.Rows, primary.Series)
	for _, s := range secondary {
		if s.Usable() {
			t.Rows = appendTagged(t.Rows, s.Series)
		}
	}
	return t
}

func appendTagged(dst []MergedRow, s OptionSeries) []MergedRow {
	label := s.Label()
	for _, r := range s.Rows {
		dst = append(dst, MergedRow{
			Date:       NormalizeDate(r.Date),
			Expiration: label,
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     r.Volume,
			Count:      r.Count,
			Bid:        r.Bid,
			Ask:        r.Ask,
		})
	}
	return dst
}
