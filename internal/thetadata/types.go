package thetadata

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format Theta Terminal uses for dates (YYYYMMDD).
const DateLayout = "20060102"

// Right is the option right as the terminal spells it.
type Right string

const (
	Call Right = "C"
	Put  Right = "P"
)

// ParseRight accepts C/P, CALL/PUT in any case.
func ParseRight(s string) (Right, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL", "CALLS":
		return Call, nil
	case "P", "PUT", "PUTS":
		return Put, nil
	}
	return "", fmt.Errorf("invalid option right %q (use call or put)", s)
}

func (r Right) String() string {
	switch r {
	case Call:
		return "CALL"
	case Put:
		return "PUT"
	}
	return string(r)
}

// Query identifies one option contract's EOD history over a date range.
type Query struct {
	Root       string
	Expiration time.Time
	Strike     decimal.Decimal
	Right      Right
	Start      time.Time
	End        time.Time
}

// Params encodes the query for /v2/hist/option/eod.
func (q Query) Params() url.Values {
	v := url.Values{}
	v.Set("root", strings.ToUpper(q.Root))
	v.Set("exp", FormatDate(q.Expiration))
	v.Set("strike", strconv.FormatInt(StrikeToWire(q.Strike), 10))
	v.Set("right", string(q.Right))
	v.Set("start_date", FormatDate(q.Start))
	v.Set("end_date", FormatDate(q.End))
	return v
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s %s %s [%s..%s]", strings.ToUpper(q.Root), q.Expiration.Format("2006-01-02"),
		q.Strike.String(), q.Right, q.Start.Format("2006-01-02"), q.End.Format("2006-01-02"))
}

// EODRow is one end-of-day record for an option contract.
type EODRow struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Count  int64
	Bid    float64
	Ask    float64
}

// FormatDate renders t as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate converts a YYYYMMDD integer into a UTC-midnight date.
func ParseDate(v int64) (time.Time, error) {
	t, err := time.Parse(DateLayout, strconv.FormatInt(v, 10))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %d: %w", v, err)
	}
	return t, nil
}

// Strikes travel in tenths of a cent: $172.50 is 172500.

// StrikeToWire converts a dollar strike to the terminal's integer form.
func StrikeToWire(strike decimal.Decimal) int64 {
	return strike.Shift(3).Round(0).IntPart()
}

// StrikeFromWire converts the terminal's integer strike to dollars.
func StrikeFromWire(v int64) decimal.Decimal {
	return decimal.New(v, -3)
}
