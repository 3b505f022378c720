package dashboard

import (
	"math"
	"sort"
	"time"
)

// Cell is one pivot value. Valid is false where the expiration has no row
// for the date; such cells are missing, not zero.
type Cell struct {
	Value float64
	Valid bool
}

// Matrix is a merged table pivoted to one row per date and one column per
// expiration label, holding a single metric.
type Matrix struct {
	Metric  Metric
	Dates   []time.Time
	Columns []string
	Cells   [][]Cell // [date][column]
}

func (m Matrix) Empty() bool { return len(m.Dates) == 0 || len(m.Columns) == 0 }

// Column returns column j as floats with NaN for missing cells.
func (m Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Dates))
	for i := range m.Dates {
		c := m.Cells[i][j]
		if c.Valid {
			out[i] = c.Value
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Pivot reshapes t by metric: Price takes close, Volume takes volume.
// Dates ascend, columns keep first-appearance order and a repeated
// (date, expiration) pair keeps its first row.
func Pivot(t MergedTable, metric Metric) Matrix {
	m := Matrix{Metric: metric, Columns: t.Expirations()}
	if t.Empty() {
		return m
	}
	colIdx := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		colIdx[c] = i
	}

	dateSet := map[time.Time]bool{}
	for _, r := range t.Rows {
		dateSet[NormalizeDate(r.Date)] = true
	}
	m.Dates = make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		m.Dates = append(m.Dates, d)
	}
	sort.Slice(m.Dates, func(i, j int) bool { return m.Dates[i].Before(m.Dates[j]) })
	rowIdx := make(map[time.Time]int, len(m.Dates))
	for i, d := range m.Dates {
		rowIdx[d] = i
	}

	m.Cells = make([][]Cell, len(m.Dates))
	for i := range m.Cells {
		m.Cells[i] = make([]Cell, len(m.Columns))
	}
	for _, r := range t.Rows {
		cell := &m.Cells[rowIdx[NormalizeDate(r.Date)]][colIdx[r.Expiration]]
		if cell.Valid {
			continue
		}
		*cell = Cell{Value: metricValue(r, metric), Valid: true}
	}
	return m
}

func metricValue(r MergedRow, metric Metric) float64 {
	if metric == MetricVolume {
		return float64(r.Volume)
	}
	return r.Close
}
