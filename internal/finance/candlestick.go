package finance

import (
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	candleUp   = drawing.Color{R: 38, G: 166, B: 154, A: 255}
	candleDown = drawing.Color{R: 239, G: 83, B: 80, A: 255}
)

// candleSeries is a go-chart series drawing one wick and body per bar.
type candleSeries struct {
	name string
	bars []Bar
}

func (s candleSeries) GetName() string           { return s.name }
func (s candleSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }
func (s candleSeries) GetStyle() chart.Style     { return chart.Style{} }
func (s candleSeries) Len() int                  { return len(s.bars) }

// GetBoundedValues feeds the chart's range calculation with the bar's
// low and high.
func (s candleSeries) GetBoundedValues(i int) (x, y1, y2 float64) {
	b := s.bars[i]
	return chart.TimeToFloat64(b.Date), b.Low, b.High
}

func (s candleSeries) Validate() error {
	if len(s.bars) == 0 {
		return fmt.Errorf("candlestick series %q has no bars", s.name)
	}
	return nil
}

func (s candleSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, _ chart.Style) {
	half := candleHalfWidth(canvasBox, len(s.bars))
	for _, b := range s.bars {
		x := canvasBox.Left + xrange.Translate(chart.TimeToFloat64(b.Date))
		yHigh := canvasBox.Bottom - yrange.Translate(b.High)
		yLow := canvasBox.Bottom - yrange.Translate(b.Low)
		yOpen := canvasBox.Bottom - yrange.Translate(b.Open)
		yClose := canvasBox.Bottom - yrange.Translate(b.Close)

		col := candleUp
		if b.Close < b.Open {
			col = candleDown
		}

		r.SetStrokeColor(col)
		r.SetStrokeWidth(1)
		r.MoveTo(x, yHigh)
		r.LineTo(x, yLow)
		r.Stroke()

		top, bottom := yOpen, yClose
		if top > bottom {
			top, bottom = bottom, top
		}
		if bottom == top {
			bottom = top + 1
		}
		r.SetFillColor(col)
		r.SetStrokeColor(col)
		r.MoveTo(x-half, top)
		r.LineTo(x+half, top)
		r.LineTo(x+half, bottom)
		r.LineTo(x-half, bottom)
		r.LineTo(x-half, top)
		r.Close()
		r.FillStroke()
	}
}

func candleHalfWidth(canvasBox chart.Box, n int) int {
	if n <= 0 {
		return 1
	}
	w := canvasBox.Width() / (n + 2) / 3
	if w < 1 {
		return 1
	}
	if w > 8 {
		return 8
	}
	return w
}
