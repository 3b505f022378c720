package dashboard

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// FormatTable renders the merged rows as aligned columns for a monospace
// block.
func FormatTable(t MergedTable) string {
	if t.Empty() {
		return ""
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Date\tExpiration\tOpen\tHigh\tLow\tClose\tVolume\tTrades\tBid\tAsk\t")
	for _, r := range t.Rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%d\t%.2f\t%.2f\t\n",
			r.Date.Format(ExpirationLayout), r.Expiration, r.Open, r.High, r.Low, r.Close, r.Volume, r.Count, r.Bid, r.Ask)
	}
	w.Flush()
	return sb.String()
}

// FormatMatrix renders a pivot with "-" for missing cells.
func FormatMatrix(m Matrix) string {
	if m.Empty() {
		return ""
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Date\t%s\t\n", strings.Join(m.Columns, "\t"))
	for i, d := range m.Dates {
		cols := make([]string, len(m.Columns))
		for j, c := range m.Cells[i] {
			switch {
			case !c.Valid:
				cols[j] = "-"
			case m.Metric == MetricVolume:
				cols[j] = fmt.Sprintf("%.0f", c.Value)
			default:
				cols[j] = fmt.Sprintf("%.2f", c.Value)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t\n", d.Format(ExpirationLayout), strings.Join(cols, "\t"))
	}
	w.Flush()
	return sb.String()
}
