package finance

import (
	"fmt"
	"sort"

	"github.com/vicanso/go-charts/v2"
)

// UsagePie renders the command usage distribution over the last days.
func (c *Charts) UsagePie(counts map[string]int, days int) ([]byte, error) {
	if len(counts) == 0 {
		return nil, ErrNoPoints
	}

	commands := make([]string, 0, len(counts))
	for cmd := range counts {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)

	total := 0
	values := make([]float64, 0, len(commands))
	for _, cmd := range commands {
		values = append(values, float64(counts[cmd]))
		total += counts[cmd]
	}
	if total == 0 {
		return nil, ErrNoPoints
	}
	labels := make([]string, len(commands))
	for i, cmd := range commands {
		labels[i] = fmt.Sprintf("%s (%.1f%%)", cmd, values[i]/float64(total)*100)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Command Usage Distribution (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}
