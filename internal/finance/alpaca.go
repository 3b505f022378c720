package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaProvider reads daily bars from the Alpaca market-data API and the
// asset name from the trading API.
type AlpacaProvider struct {
	data  *marketdata.Client
	trade *alpaca.Client
	feed  string
}

func NewAlpacaProvider(apiKey, apiSecret, dataURL, tradeURL, feed string) *AlpacaProvider {
	mdOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		mdOpts.BaseURL = dataURL
	}
	trOpts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if tradeURL != "" {
		trOpts.BaseURL = tradeURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaProvider{
		data:  marketdata.NewClient(mdOpts),
		trade: alpaca.NewClient(trOpts),
		feed:  feed,
	}
}

func (p *AlpacaProvider) Name() string { return "alpaca" }

func (p *AlpacaProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	raw, err := p.data.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(p.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}
	loc := getEasternTime()
	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Date:   TradingDay(b.Timestamp, loc),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	bars = cleanBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyResult)
	}
	return bars, nil
}

func (p *AlpacaProvider) Metadata(ctx context.Context, symbol string) (Meta, error) {
	meta := Meta{Symbol: strings.ToUpper(symbol), Currency: "USD"}
	if ctx.Err() != nil {
		return meta, ctx.Err()
	}
	asset, err := p.trade.GetAsset(meta.Symbol)
	if err != nil {
		return meta, fmt.Errorf("GetAsset %s: %w", symbol, err)
	}
	meta.LongName = asset.Name
	return meta, nil
}
