package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"optionsViewer/internal/dashboard"
)

// controls is the inline keyboard under a view. Each button carries the
// action it applies, encoded as "target:value"; the current choice is marked.
func controls(st dashboard.State, v dashboard.Variant) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if v.PerPanelStyles {
		rows = append(rows,
			styleRow("Stock", dashboard.TargetStockStyle, st.StockStyle),
			styleRow("Option", dashboard.TargetOptionStyle, st.OptionStyle),
		)
	} else {
		rows = append(rows, styleRow("", dashboard.TargetStockStyle, st.StockStyle))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			button("Price", dashboard.TargetMetric, string(dashboard.MetricPrice), st.Metric == dashboard.MetricPrice),
			button("Volume", dashboard.TargetMetric, string(dashboard.MetricVolume), st.Metric == dashboard.MetricVolume),
		),
		tgbotapi.NewInlineKeyboardRow(
			button("Chart", dashboard.TargetMode, string(dashboard.ModeChart), st.Mode == dashboard.ModeChart),
			button("Table", dashboard.TargetMode, string(dashboard.ModeTable), st.Mode == dashboard.ModeTable),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func styleRow(panel string, target dashboard.Target, current dashboard.Style) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(dashboard.Styles))
	for _, s := range dashboard.Styles {
		label := strings.ToUpper(string(s[:1])) + string(s[1:])
		if panel != "" {
			label = panel + " " + label
		}
		row = append(row, button(label, target, string(s), s == current))
	}
	return row
}

func button(label string, target dashboard.Target, value string, selected bool) tgbotapi.InlineKeyboardButton {
	if selected {
		label = "• " + label
	}
	return tgbotapi.NewInlineKeyboardButtonData(label, string(target)+":"+value)
}
