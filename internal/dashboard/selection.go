// Package dashboard turns a user's option selection into the views the bot
// and the HTTP API present: it fetches option and underlying history, merges
// and pivots the option rows, and tracks the chart display state.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsViewer/internal/thetadata"
)

// ExpirationLayout is the label format of an expiration column.
const ExpirationLayout = "2006-01-02"

// DefaultStart is the first day of the default date range.
var DefaultStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Selection is everything the user picked for one render pass. A zero
// Secondary means no second expiration was requested.
type Selection struct {
	Root       string          `json:"root"`
	Expiration time.Time       `json:"expiration"`
	Secondary  time.Time       `json:"secondary,omitempty"`
	Strike     decimal.Decimal `json:"strike"`
	Right      thetadata.Right `json:"right"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
}

// HasSecondary reports whether a second expiration is selected.
func (s Selection) HasSecondary() bool {
	return !s.Secondary.IsZero()
}

// Complete reports whether the selection names a full contract.
func (s Selection) Complete() bool {
	return s.Root != "" && !s.Expiration.IsZero() && !s.Strike.IsZero() && s.Right != ""
}

// Queries builds the primary query and, when requested, the secondary one.
// Both share root, strike, right and range and differ only in expiration.
func (s Selection) Queries() (primary thetadata.Query, secondary *thetadata.Query) {
	primary = thetadata.Query{
		Root:       strings.ToUpper(s.Root),
		Expiration: NormalizeDate(s.Expiration),
		Strike:     s.Strike,
		Right:      s.Right,
		Start:      NormalizeDate(s.Start),
		End:        NormalizeDate(s.End),
	}
	if s.HasSecondary() {
		q := primary
		q.Expiration = NormalizeDate(s.Secondary)
		secondary = &q
	}
	return primary, secondary
}

func (s Selection) String() string {
	out := fmt.Sprintf("%s %s %s %s", strings.ToUpper(s.Root), FormatExpiration(s.Expiration), s.Strike.String(), s.Right)
	if s.HasSecondary() {
		out += " + " + FormatExpiration(s.Secondary)
	}
	return out + fmt.Sprintf(" [%s..%s]", FormatExpiration(s.Start), FormatExpiration(s.End))
}

// NormalizeDate maps t to its calendar date at UTC midnight. Every date is
// normalized before it is compared, pivoted or plotted.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatExpiration renders an expiration label (YYYY-MM-DD).
func FormatExpiration(t time.Time) string {
	return NormalizeDate(t).Format(ExpirationLayout)
}

// ParseDay accepts YYYY-MM-DD or YYYYMMDD.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ExpirationLayout, thetadata.DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
}
