package dashboard

import (
	"fmt"
	"time"

	"optionsViewer/internal/finance"
)

// NoOptionDataNotice is shown when the primary expiration has no rows.
const NoOptionDataNotice = "No data available for the selected options."

// View is the outcome of one render pass: everything the presenter needs
// and nothing carried over from earlier passes except State.
type View struct {
	ID        string
	CreatedAt time.Time
	Selection Selection
	State     State

	Meta        finance.Meta
	Underlying  []finance.Bar
	LatestPrice float64

	Primary   FetchResult
	Secondary *FetchResult

	Table  MergedTable
	Matrix Matrix

	Notices []string
}

// Summary is the "Symbol - Name - Latest Price" line.
func (v *View) Summary() string {
	return fmt.Sprintf("Symbol: %s - %s - Latest Price: %.2f", v.Selection.Root, v.Meta.LongName, v.LatestPrice)
}

// HasStock reports whether the stock panel has anything to draw.
func (v *View) HasStock() bool { return len(v.Underlying) > 0 }

// HasOptions reports whether the option panel is shown at all.
func (v *View) HasOptions() bool { return !v.Table.Empty() }

// OptionTitle is the option panel heading for the current mode and metric.
func (v *View) OptionTitle() string {
	if v.State.Mode == ModeTable {
		return "Option Data Table"
	}
	return fmt.Sprintf("Option %s Chart", v.State.Metric.Label())
}

// StockTitle is the stock panel heading.
func (v *View) StockTitle() string {
	if v.Meta.LongName != "" {
		return fmt.Sprintf("%s (%s) Close", v.Selection.Root, v.Meta.LongName)
	}
	return v.Selection.Root + " Close"
}

func (v *View) addNotice(format string, args ...any) {
	v.Notices = append(v.Notices, fmt.Sprintf(format, args...))
}
