package dashboard

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"optionsViewer/internal/finance"
)

// ChartRenderer draws PNG charts. finance.Charts implements it.
type ChartRenderer interface {
	Line(title string, dates []time.Time, series []finance.LineSeries) ([]byte, error)
	Scatter(title string, dates []time.Time, series []finance.LineSeries) ([]byte, error)
	Candlestick(title string, bars []finance.Bar) ([]byte, error)
}

// ErrEmptyPanel is returned when a panel has nothing to draw.
var ErrEmptyPanel = errors.New("panel has no data")

// Output is a presented view: what a surface sends to the user.
type Output struct {
	Summary     string
	StockTitle  string
	StockChart  []byte
	OptionTitle string
	OptionChart []byte
	OptionTable string
	Notices     []string
}

// Presenter turns views into chart images and table text.
type Presenter struct {
	charts ChartRenderer
}

func NewPresenter(c ChartRenderer) *Presenter {
	return &Presenter{charts: c}
}

// Present renders both panels. A panel that fails to render is replaced by a
// notice; the rest of the output is still delivered.
func (p *Presenter) Present(v *View) Output {
	out := Output{
		Summary: v.Summary(),
		Notices: append([]string(nil), v.Notices...),
	}

	if v.HasStock() {
		out.StockTitle = v.StockTitle()
		img, err := p.StockChart(v)
		if err != nil {
			logrus.WithError(err).Warn("presenter: stock chart failed")
			out.Notices = append(out.Notices, "Stock chart could not be drawn.")
		} else {
			out.StockChart = img
		}
	}

	if !v.HasOptions() {
		return out
	}
	out.OptionTitle = v.OptionTitle()
	if v.State.Mode == ModeTable {
		out.OptionTable = FormatTable(v.Table)
		return out
	}
	img, err := p.OptionChart(v)
	if err != nil {
		// The pivot still reads as text.
		logrus.WithError(err).Warn("presenter: option chart failed")
		out.Notices = append(out.Notices, "Option chart could not be drawn.")
		out.OptionTable = FormatMatrix(v.Matrix)
		return out
	}
	out.OptionChart = img
	return out
}

// StockChart draws the underlying's close, or its OHLC as candlesticks.
func (p *Presenter) StockChart(v *View) ([]byte, error) {
	if !v.HasStock() {
		return nil, ErrEmptyPanel
	}
	title := v.StockTitle()
	switch v.State.StockStyle {
	case StyleCandlestick:
		return p.charts.Candlestick(title, v.Underlying)
	case StyleScatter:
		dates, series := stockSeries(v)
		return p.charts.Scatter(title, dates, series)
	default:
		dates, series := stockSeries(v)
		return p.charts.Line(title, dates, series)
	}
}

// OptionChart draws the pivoted metric, one series per expiration. The
// candlestick style needs OHLC, which the pivot discards, so it draws the
// primary series' rows instead.
func (p *Presenter) OptionChart(v *View) ([]byte, error) {
	if !v.HasOptions() {
		return nil, ErrEmptyPanel
	}
	title := v.OptionTitle()
	switch v.State.OptionStyle {
	case StyleCandlestick:
		return p.charts.Candlestick(title+" "+v.Primary.Series.Label(), primaryBars(v.Primary.Series))
	case StyleScatter:
		return p.charts.Scatter(title, v.Matrix.Dates, matrixSeries(v.Matrix))
	default:
		return p.charts.Line(title, v.Matrix.Dates, matrixSeries(v.Matrix))
	}
}

func stockSeries(v *View) ([]time.Time, []finance.LineSeries) {
	dates := make([]time.Time, len(v.Underlying))
	closes := make([]float64, len(v.Underlying))
	for i, b := range v.Underlying {
		dates[i] = b.Date
		closes[i] = b.Close
	}
	return dates, []finance.LineSeries{{Name: v.Selection.Root, Values: closes}}
}

func matrixSeries(m Matrix) []finance.LineSeries {
	out := make([]finance.LineSeries, len(m.Columns))
	for j, c := range m.Columns {
		out[j] = finance.LineSeries{Name: c, Values: m.Column(j)}
	}
	return out
}

func primaryBars(s OptionSeries) []finance.Bar {
	bars := make([]finance.Bar, len(s.Rows))
	for i, r := range s.Rows {
		bars[i] = finance.Bar{
			Date:   NormalizeDate(r.Date),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: float64(r.Volume),
		}
	}
	return bars
}
