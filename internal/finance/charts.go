package finance

import (
	"bytes"
	"errors"
	"math"
	"time"

	"github.com/vicanso/go-charts/v2"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoPoints is returned when a chart would have nothing to draw.
var ErrNoPoints = errors.New("finance: no points to plot")

// LineSeries is one named column plotted against a shared date axis.
// NaN marks a date with no value.
type LineSeries struct {
	Name   string
	Values []float64
}

const (
	chartWidth  = 900
	chartHeight = 420
)

// Charts renders PNG line, scatter and candlestick charts and caches the
// images for a short TTL.
type Charts struct {
	cache *chartCache
}

func NewCharts(ttl time.Duration) *Charts {
	return &Charts{cache: newChartCache(ttl)}
}

func seriesKey(kind, title string, dates []time.Time, series []LineSeries) uint64 {
	k := newChartKey(kind, title)
	for _, d := range dates {
		k.date(d)
	}
	for _, s := range series {
		k.str(s.Name)
		for _, v := range s.Values {
			k.num(v)
		}
	}
	return k.sum()
}

// valueRange returns padded min/max over the non-NaN values.
func valueRange(series []LineSeries) (lo, hi float64, ok bool) {
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			if !ok {
				lo, hi, ok = v, v, true
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if !ok {
		return 0, 0, false
	}
	pad := (hi - lo) * 0.05
	if pad < math.Abs(hi)*0.002 {
		pad = math.Abs(hi) * 0.002
	}
	if pad == 0 {
		pad = 1
	}
	lo -= pad
	if lo < 0 && hi >= 0 && lo+pad >= 0 {
		lo = 0
	}
	return lo, hi + pad, true
}

// Line draws every series as a line over the date labels.
func (c *Charts) Line(title string, dates []time.Time, series []LineSeries) ([]byte, error) {
	yMin, yMax, ok := valueRange(series)
	if !ok || len(dates) == 0 {
		return nil, ErrNoPoints
	}
	key := seriesKey("line", title, dates, series)
	if img, ok := c.cache.get(key); ok {
		return img, nil
	}

	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format("2006-01-02")
	}
	values := make([][]float64, len(series))
	names := make([]string, len(series))
	for i, s := range series {
		row := make([]float64, len(dates))
		for j := range row {
			if j < len(s.Values) && !math.IsNaN(s.Values[j]) {
				row[j] = s.Values[j]
			} else {
				row[j] = charts.GetNullValue()
			}
		}
		values[i] = row
		names[i] = s.Name
	}
	split := 8
	if len(labels) < split {
		split = len(labels)
	}

	painter, err := charts.LineRender(values,
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: labels, BoundaryGap: charts.FalseFlag(), SplitNumber: split}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: "30"}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, err
	}
	img, err := painter.Bytes()
	if err != nil {
		return nil, err
	}
	c.cache.set(key, img)
	return img, nil
}

// Scatter draws each series as unconnected dots. Missing values are skipped.
func (c *Charts) Scatter(title string, dates []time.Time, series []LineSeries) ([]byte, error) {
	yMin, yMax, ok := valueRange(series)
	if !ok || len(dates) == 0 {
		return nil, ErrNoPoints
	}
	key := seriesKey("scatter", title, dates, series)
	if img, ok := c.cache.get(key); ok {
		return img, nil
	}

	list := make([]chart.Series, 0, len(series))
	for i, s := range series {
		ts := chart.TimeSeries{
			Name: s.Name,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    paletteColor(i),
			},
		}
		for j, v := range s.Values {
			if j >= len(dates) || math.IsNaN(v) {
				continue
			}
			ts.XValues = append(ts.XValues, dates[j])
			ts.YValues = append(ts.YValues, v)
		}
		if len(ts.XValues) > 0 {
			list = append(list, ts)
		}
	}
	img, err := renderTimeChart(title, dates[0], dates[len(dates)-1], yMin, yMax, list)
	if err != nil {
		return nil, err
	}
	c.cache.set(key, img)
	return img, nil
}

// Candlestick draws OHLC bars, green when the close is at or above the open.
func (c *Charts) Candlestick(title string, bars []Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, ErrNoPoints
	}
	k := newChartKey("candle", title)
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars {
		k.date(b.Date)
		k.num(b.Open)
		k.num(b.High)
		k.num(b.Low)
		k.num(b.Close)
		lo = math.Min(lo, math.Min(b.Low, math.Min(b.Open, b.Close)))
		hi = math.Max(hi, math.Max(b.High, math.Max(b.Open, b.Close)))
	}
	key := k.sum()
	if img, ok := c.cache.get(key); ok {
		return img, nil
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 0.01)
	}
	series := candleSeries{name: title, bars: bars}
	img, err := renderTimeChart(title, bars[0].Date, bars[len(bars)-1].Date, lo-pad, hi+pad, []chart.Series{series})
	if err != nil {
		return nil, err
	}
	c.cache.set(key, img)
	return img, nil
}

// renderTimeChart renders series on a date x-axis with explicit ranges, so
// a single trading day still yields a non-empty domain.
func renderTimeChart(title string, first, last time.Time, yMin, yMax float64, series []chart.Series) ([]byte, error) {
	if len(series) == 0 {
		return nil, ErrNoPoints
	}
	xMin := chart.TimeToFloat64(first.AddDate(0, 0, -1))
	xMax := chart.TimeToFloat64(last.AddDate(0, 0, 1))
	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
			Range:          &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var palette = []drawing.Color{
	{R: 84, G: 112, B: 198, A: 255},
	{R: 145, G: 204, B: 117, A: 255},
	{R: 250, G: 200, B: 88, A: 255},
	{R: 238, G: 102, B: 102, A: 255},
	{R: 115, G: 192, B: 222, A: 255},
}

func paletteColor(i int) drawing.Color {
	return palette[i%len(palette)]
}
