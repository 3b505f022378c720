package telegram

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsViewer/internal/dashboard"
	"optionsViewer/internal/thetadata"
)

var (
	// /help
	reHelp = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
	// /roots [PREFIX]
	reRoots = regexp.MustCompile(`^/roots(?:@[\w_]+)?(?:\s+([A-Za-z0-9\.]+))?$`)
	// /exps ROOT
	reExps = regexp.MustCompile(`^/exps(?:@[\w_]+)?\s+([A-Za-z0-9\.]+)$`)
	// /strikes ROOT EXP
	reStrikes = regexp.MustCompile(`^/strikes(?:@[\w_]+)?\s+([A-Za-z0-9\.]+)\s+(\d{4}-?\d{2}-?\d{2})$`)
	// /option ROOT EXP STRIKE [call|put] [EXP2|none]
	reOption = regexp.MustCompile(`(?i)^/option(?:@[\w_]+)?\s+([A-Za-z0-9\.]+)\s+(\d{4}-?\d{2}-?\d{2})\s+(\d+(?:\.\d+)?)(?:\s+(call|put|c|p))?(?:\s+(\d{4}-?\d{2}-?\d{2}|none))?$`)
	// /range START [END]
	reRange = regexp.MustCompile(`^/range(?:@[\w_]+)?\s+(\d{4}-?\d{2}-?\d{2})(?:\s+(\d{4}-?\d{2}-?\d{2}))?$`)
	// /metric price|volume
	reMetric = regexp.MustCompile(`(?i)^/metric(?:@[\w_]+)?\s+(price|volume)$`)
	// /mode chart|table
	reMode = regexp.MustCompile(`(?i)^/mode(?:@[\w_]+)?\s+(chart|table)$`)
	// /style stock|option line|scatter|candlestick
	reStyle = regexp.MustCompile(`(?i)^/style(?:@[\w_]+)?\s+(stock|option)\s+(line|scatter|candlestick)$`)
	reShow   = regexp.MustCompile(`^/show(?:@[\w_]+)?$`)
	reExport = regexp.MustCompile(`^/export(?:@[\w_]+)?$`)
	// /usage [days]
	reUsage   = regexp.MustCompile(`^/usage(?:@[\w_]+)?(?:\s+(\d+))?$`)
	reCommand = regexp.MustCompile(`^/([A-Za-z_-]+)`)
)

// commandName is the bare command of a message, for the usage log.
func commandName(txt string) string {
	if g := reCommand.FindStringSubmatch(txt); len(g) == 2 {
		return strings.ToLower(g[1])
	}
	return ""
}

// parseOption builds a selection from /option arguments, keeping the
// session's date range. The secondary expiration is cleared by "none" or by
// omitting it.
func parseOption(g []string, prev dashboard.Selection, v dashboard.Variant) (dashboard.Selection, error) {
	sel := prev
	sel.Root = strings.ToUpper(g[1])
	exp, err := dashboard.ParseDay(g[2])
	if err != nil {
		return prev, err
	}
	sel.Expiration = exp
	strike, err := decimal.NewFromString(g[3])
	if err != nil {
		return prev, fmt.Errorf("invalid strike %q", g[3])
	}
	sel.Strike = strike

	sel.Right = thetadata.Call
	if g[4] != "" {
		r, err := thetadata.ParseRight(g[4])
		if err != nil {
			return prev, err
		}
		if r != thetadata.Call && !v.RightSelectable {
			return prev, fmt.Errorf("only calls are available")
		}
		sel.Right = r
	}

	sel.Secondary = time.Time{}
	if g[5] != "" && !strings.EqualFold(g[5], "none") {
		sec, err := dashboard.ParseDay(g[5])
		if err != nil {
			return prev, err
		}
		sel.Secondary = sec
	}
	return sel, nil
}

// parseCallback decodes inline button data ("stock:line", "metric:volume").
func parseCallback(data string) (dashboard.Action, error) {
	target, value, ok := strings.Cut(data, ":")
	if !ok {
		return dashboard.Action{}, fmt.Errorf("malformed callback %q", data)
	}
	switch t := dashboard.Target(target); t {
	case dashboard.TargetStockStyle, dashboard.TargetOptionStyle, dashboard.TargetMetric, dashboard.TargetMode:
		return dashboard.Action{Target: t, Value: value}, nil
	}
	return dashboard.Action{}, fmt.Errorf("unknown control %q", target)
}

const helpText = "Commands\n\n" +
	"- /roots [PREFIX] - Option roots, optionally filtered by prefix\n" +
	"- /exps ROOT - Expirations for a root, latest first\n" +
	"- /strikes ROOT EXP - Strikes for a root and expiration (EXP as YYYY-MM-DD)\n" +
	"- /option ROOT EXP STRIKE [call|put] [EXP2|none] - Select a contract and show it; EXP2 adds a second expiration\n" +
	"- /range START [END] - Date range for history (default 2023-01-01 to today)\n" +
	"- /style stock|option line|scatter|candlestick - Chart style per panel\n" +
	"- /metric price|volume - Option metric to chart\n" +
	"- /mode chart|table - Option panel as chart or table\n" +
	"- /show - Redraw the current selection\n" +
	"- /export - Merged option rows as a Parquet file\n" +
	"- /usage [days] - Command usage over the last N days (default 7)\n" +
	"\nThe buttons under each view switch styles, metric and mode."
