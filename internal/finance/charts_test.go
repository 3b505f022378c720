package finance

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func testDates(n int) []time.Time {
	d := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = d.AddDate(0, 0, i)
	}
	return out
}

func TestLineRendersPNG(t *testing.T) {
	c := NewCharts(time.Minute)
	img, err := c.Line("Option Price Chart", testDates(3), []LineSeries{
		{Name: "2024-06-21", Values: []float64{1.2, math.NaN(), 1.5}},
		{Name: "2024-07-19", Values: []float64{2.1, 2.3, 2.2}},
	})
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("Line output is not a PNG")
	}
}

func TestScatterRendersPNG(t *testing.T) {
	c := NewCharts(time.Minute)
	img, err := c.Scatter("XYZ Stock Chart", testDates(2), []LineSeries{{Name: "XYZ", Values: []float64{10, 11}}})
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("Scatter output is not a PNG")
	}
}

func TestCandlestickSingleBar(t *testing.T) {
	c := NewCharts(time.Minute)
	img, err := c.Candlestick("XYZ", []Bar{{Date: testDates(1)[0], Open: 10, High: 12, Low: 9, Close: 11}})
	if err != nil {
		t.Fatalf("Candlestick: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("Candlestick output is not a PNG")
	}
}

func TestChartsRejectEmptyInput(t *testing.T) {
	c := NewCharts(time.Minute)
	if _, err := c.Line("x", testDates(2), []LineSeries{{Name: "a", Values: []float64{math.NaN(), math.NaN()}}}); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Line all-NaN err = %v", err)
	}
	if _, err := c.Scatter("x", nil, nil); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Scatter empty err = %v", err)
	}
	if _, err := c.Candlestick("x", nil); !errors.Is(err, ErrNoPoints) {
		t.Errorf("Candlestick empty err = %v", err)
	}
}

func TestChartCacheExpires(t *testing.T) {
	cache := newChartCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.set(1, []byte("img"))
	got, ok := cache.get(1)
	if !ok || string(got) != "img" {
		t.Fatalf("get = %q, %v", got, ok)
	}
	got[0] = 'X'
	if again, _ := cache.get(1); string(again) != "img" {
		t.Error("cache returned a shared slice")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.get(1); ok {
		t.Error("entry should have expired")
	}
}

func TestSeriesKeyDistinguishesValues(t *testing.T) {
	d := testDates(2)
	a := seriesKey("line", "t", d, []LineSeries{{Name: "s", Values: []float64{1, 2}}})
	b := seriesKey("line", "t", d, []LineSeries{{Name: "s", Values: []float64{1, 3}}})
	c := seriesKey("scatter", "t", d, []LineSeries{{Name: "s", Values: []float64{1, 2}}})
	if a == b || a == c {
		t.Error("distinct inputs produced the same cache key")
	}
}

func TestUsagePie(t *testing.T) {
	c := NewCharts(time.Minute)
	img, err := c.UsagePie(map[string]int{"show": 3, "option": 1}, 7)
	if err != nil {
		t.Fatalf("UsagePie: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Error("UsagePie output is not a PNG")
	}
	if _, err := c.UsagePie(nil, 7); !errors.Is(err, ErrNoPoints) {
		t.Errorf("empty usage err = %v", err)
	}
}
