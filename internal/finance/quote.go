package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyResult is returned when a quote source has no rows for the symbol
// and range (unknown symbol, no trading days).
var ErrEmptyResult = errors.New("finance: empty result")

// QuoteProvider supplies underlying price history and symbol metadata.
type QuoteProvider interface {
	// History returns daily bars for [start, end), oldest first.
	History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
	// Metadata returns descriptive data; LongName may be empty.
	Metadata(ctx context.Context, symbol string) (Meta, error)
	Name() string
}

// ProviderOptions selects and configures a QuoteProvider.
type ProviderOptions struct {
	Provider       string // "yahoo" (default) or "alpaca"
	Timeout        time.Duration
	AlpacaKey      string
	AlpacaSecret   string
	AlpacaDataURL  string
	AlpacaTradeURL string
	AlpacaDataFeed string
}

// NewProvider builds the configured quote provider.
func NewProvider(opts ProviderOptions) (QuoteProvider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "yahoo":
		return NewYahooProvider(opts.Timeout), nil
	case "alpaca":
		if opts.AlpacaKey == "" || opts.AlpacaSecret == "" {
			return nil, fmt.Errorf("alpaca quote provider needs api key and secret")
		}
		return NewAlpacaProvider(opts.AlpacaKey, opts.AlpacaSecret, opts.AlpacaDataURL, opts.AlpacaTradeURL, opts.AlpacaDataFeed), nil
	}
	return nil, fmt.Errorf("unknown quote provider %q", opts.Provider)
}

// LatestClose returns the last bar's close, or 0 when there are no bars.
func LatestClose(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}
