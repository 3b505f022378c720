package dashboard

import (
	"fmt"
	"strings"
)

// Style is how a panel draws its series.
type Style string

const (
	StyleLine        Style = "line"
	StyleScatter     Style = "scatter"
	StyleCandlestick Style = "candlestick"
)

// Styles lists the chart styles in button order.
var Styles = []Style{StyleLine, StyleScatter, StyleCandlestick}

// Metric selects the option column a pivot plots.
type Metric string

const (
	MetricPrice  Metric = "price"
	MetricVolume Metric = "volume"
)

// Mode is how the option panel is displayed.
type Mode string

const (
	ModeChart Mode = "chart"
	ModeTable Mode = "table"
)

func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleLine:
		return StyleLine, nil
	case StyleScatter:
		return StyleScatter, nil
	case StyleCandlestick, "candle":
		return StyleCandlestick, nil
	}
	return "", fmt.Errorf("invalid chart style %q (use line, scatter or candlestick)", s)
}

func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricPrice, "close":
		return MetricPrice, nil
	case MetricVolume:
		return MetricVolume, nil
	}
	return "", fmt.Errorf("invalid metric %q (use price or volume)", s)
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeChart:
		return ModeChart, nil
	case ModeTable:
		return ModeTable, nil
	}
	return "", fmt.Errorf("invalid display mode %q (use chart or table)", s)
}

// Label is the capitalised name used in titles ("Price", "Volume").
func (m Metric) Label() string {
	if m == MetricVolume {
		return "Volume"
	}
	return "Price"
}

// Variant configures the dashboard's selectors.
type Variant struct {
	// RightSelectable lets the user pick PUT; otherwise every query is a CALL.
	RightSelectable bool
	// PerPanelStyles gives the stock and option panels independent style
	// toggles. When false a style change applies to both panels.
	PerPanelStyles bool
}

// DefaultVariant has a selectable right and per-panel style buttons.
func DefaultVariant() Variant {
	return Variant{RightSelectable: true, PerPanelStyles: true}
}

// State is the display state threaded through each render pass.
type State struct {
	StockStyle  Style  `json:"stock_style"`
	OptionStyle Style  `json:"option_style"`
	Metric      Metric `json:"metric"`
	Mode        Mode   `json:"mode"`
}

// InitialState is Line for both panels, Price, Chart.
func InitialState() State {
	return State{
		StockStyle:  StyleLine,
		OptionStyle: StyleLine,
		Metric:      MetricPrice,
		Mode:        ModeChart,
	}
}

// Normalize fills unset fields from InitialState.
func (s State) Normalize() State {
	def := InitialState()
	if s.StockStyle == "" {
		s.StockStyle = def.StockStyle
	}
	if s.OptionStyle == "" {
		s.OptionStyle = def.OptionStyle
	}
	if s.Metric == "" {
		s.Metric = def.Metric
	}
	if s.Mode == "" {
		s.Mode = def.Mode
	}
	return s
}

// Target names the one state field an Action changes.
type Target string

const (
	TargetStockStyle  Target = "stock"
	TargetOptionStyle Target = "option"
	TargetMetric      Target = "metric"
	TargetMode        Target = "mode"
)

// Action is one user interaction on the display controls.
type Action struct {
	Target Target
	Value  string
}

func (a Action) String() string { return string(a.Target) + ":" + a.Value }

// Apply returns the state after a. Each action changes only its own field;
// with a shared style control a style action sets both panels. An invalid
// action leaves s unchanged and returns an error.
func (s State) Apply(a Action, v Variant) (State, error) {
	s = s.Normalize()
	switch a.Target {
	case TargetStockStyle, TargetOptionStyle:
		style, err := ParseStyle(a.Value)
		if err != nil {
			return s, err
		}
		switch {
		case !v.PerPanelStyles:
			s.StockStyle, s.OptionStyle = style, style
		case a.Target == TargetStockStyle:
			s.StockStyle = style
		default:
			s.OptionStyle = style
		}
	case TargetMetric:
		m, err := ParseMetric(a.Value)
		if err != nil {
			return s, err
		}
		s.Metric = m
	case TargetMode:
		m, err := ParseMode(a.Value)
		if err != nil {
			return s, err
		}
		s.Mode = m
	default:
		return s, fmt.Errorf("unknown control %q", a.Target)
	}
	return s, nil
}
