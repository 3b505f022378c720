package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"optionsViewer/internal/finance"
	"optionsViewer/internal/thetadata"
)

func day(s string) time.Time {
	t, err := time.Parse(ExpirationLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func eod(date string, close float64, volume int64) thetadata.EODRow {
	return thetadata.EODRow{Date: day(date), Open: close - 0.1, High: close + 0.2, Low: close - 0.3, Close: close, Volume: volume}
}

// fakeOptions serves canned listings and EOD rows keyed by expiration.
type fakeOptions struct {
	roots   []string
	exps    []time.Time
	strikes []decimal.Decimal
	rows    map[string][]thetadata.EODRow
	errs    map[string]error
	queries []thetadata.Query
}

func (f *fakeOptions) Roots(ctx context.Context) ([]string, error) { return f.roots, nil }

func (f *fakeOptions) Expirations(ctx context.Context, root string) ([]time.Time, error) {
	return f.exps, nil
}

func (f *fakeOptions) Strikes(ctx context.Context, root string, exp time.Time) ([]decimal.Decimal, error) {
	return f.strikes, nil
}

func (f *fakeOptions) HistOptionEOD(ctx context.Context, q thetadata.Query) ([]thetadata.EODRow, error) {
	f.queries = append(f.queries, q)
	key := FormatExpiration(q.Expiration)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	rows, ok := f.rows[key]
	if !ok {
		return nil, thetadata.ErrNoData
	}
	return rows, nil
}

type fakeQuotes struct {
	bars    []finance.Bar
	err     error
	meta    finance.Meta
	metaErr error
}

func (f *fakeQuotes) Name() string { return "fake" }

func (f *fakeQuotes) History(ctx context.Context, symbol string, start, end time.Time) ([]finance.Bar, error) {
	return f.bars, f.err
}

func (f *fakeQuotes) Metadata(ctx context.Context, symbol string) (finance.Meta, error) {
	return f.meta, f.metaErr
}

// countingRenderer records which chart calls were made.
type countingRenderer struct {
	line, scatter, candle int
	titles                []string
	lastSeries            []finance.LineSeries
	lastBars              []finance.Bar
	err                   error
}

func (r *countingRenderer) Line(title string, dates []time.Time, series []finance.LineSeries) ([]byte, error) {
	r.line++
	r.titles = append(r.titles, title)
	r.lastSeries = series
	return []byte("line"), r.err
}

func (r *countingRenderer) Scatter(title string, dates []time.Time, series []finance.LineSeries) ([]byte, error) {
	r.scatter++
	r.titles = append(r.titles, title)
	r.lastSeries = series
	return []byte("scatter"), r.err
}

func (r *countingRenderer) Candlestick(title string, bars []finance.Bar) ([]byte, error) {
	r.candle++
	r.titles = append(r.titles, title)
	r.lastBars = bars
	return []byte("candle"), r.err
}

func (r *countingRenderer) calls() int { return r.line + r.scatter + r.candle }

// xyzSource is the two-expiration XYZ scenario.
func xyzSource() *fakeOptions {
	return &fakeOptions{
		roots:   []string{"XYZ", "XYA", "ABC"},
		exps:    []time.Time{day("2024-07-19"), day("2024-06-21")},
		strikes: []decimal.Decimal{decimal.NewFromInt(95), decimal.NewFromInt(100), decimal.NewFromInt(105)},
		rows: map[string][]thetadata.EODRow{
			"2024-06-21": {eod("2024-01-02", 5.1, 10), eod("2024-01-03", 5.3, 12), eod("2024-01-04", 5.0, 8)},
			"2024-07-19": {eod("2024-01-03", 7.4, 3), eod("2024-01-05", 7.9, 4)},
		},
	}
}

func xyzSelection() Selection {
	return Selection{
		Root:       "XYZ",
		Expiration: day("2024-06-21"),
		Secondary:  day("2024-07-19"),
		Strike:     decimal.NewFromInt(100),
		Right:      thetadata.Call,
		Start:      day("2024-01-01"),
		End:        day("2024-06-01"),
	}
}
