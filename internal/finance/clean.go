package finance

import "sort"

// cleanBars drops rows the source reported as null or negative (holidays,
// halted sessions) and orders the rest by date, keeping the first row seen
// for a repeated date.
func cleanBars(bars []Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 {
			continue
		}
		if b.Close < 0 || b.Open < 0 || b.High < 0 || b.Low < 0 {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	dedup := out[:0]
	for i, b := range out {
		if i > 0 && b.Date.Equal(dedup[len(dedup)-1].Date) {
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// deref reads a nullable JSON number; ok is false for null or a short array.
func deref(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}
