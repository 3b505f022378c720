package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	yahooHosts    = []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"}
	yahooBackoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
)

// YahooProvider reads daily bars and metadata from the public Yahoo v8 chart API.
type YahooProvider struct {
	client   *http.Client
	hosts    []string
	backoffs []time.Duration
}

func NewYahooProvider(timeout time.Duration) *YahooProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooProvider{
		client:   &http.Client{Timeout: timeout},
		hosts:    yahooHosts,
		backoffs: yahooBackoffs,
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// History fetches daily bars in [start, end). End is exclusive, as the
// Yahoo period2 parameter is.
func (p *YahooProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "div,splits")
	yc, err := p.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	res := yc.Chart.Result[0]
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyResult)
	}
	loc := exchangeLocation(res.Meta.ExchangeTimezoneName)
	q := res.Indicators.Quote[0]
	bars := make([]Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		c, ok := deref(q.Close, i)
		if !ok {
			continue
		}
		o, _ := deref(q.Open, i)
		h, _ := deref(q.High, i)
		l, _ := deref(q.Low, i)
		v, _ := deref(q.Volume, i)
		bars = append(bars, Bar{
			Date:   TradingDay(time.Unix(ts, 0), loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	bars = cleanBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyResult)
	}
	return bars, nil
}

// Metadata reads the chart meta block for the symbol's names.
func (p *YahooProvider) Metadata(ctx context.Context, symbol string) (Meta, error) {
	params := url.Values{}
	params.Set("range", "5d")
	params.Set("interval", "1d")
	yc, err := p.fetchChart(ctx, symbol, params)
	if err != nil {
		return Meta{Symbol: strings.ToUpper(symbol)}, err
	}
	m := yc.Chart.Result[0].Meta
	name := m.LongName
	if name == "" {
		name = m.ShortName
	}
	return Meta{Symbol: strings.ToUpper(symbol), LongName: name, Currency: m.Currency}, nil
}

// fetchChart requests /v8/finance/chart/{symbol}, trying each host with
// backoff between rounds. Yahoo's own "not found" answer is ErrEmptyResult.
func (p *YahooProvider) fetchChart(ctx context.Context, symbol string, params url.Values) (*yahooChartResp, error) {
	var yc yahooChartResp
	var lastErr error
	for attempt := 0; attempt < len(p.backoffs)+1; attempt++ {
		for _, host := range p.hosts {
			u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", host, url.PathEscape(strings.ToUpper(symbol)), params.Encode())
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
			req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
			req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", strings.ToUpper(symbol)))
			resp, err := p.client.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				lastErr = err
				continue
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read yahoo response: %w", readErr)
				continue
			}
			if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
				lastErr = fmt.Errorf("yahoo %s returned 429: Edge: Too Many Requests", host)
				continue
			}
			if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
				lastErr = fmt.Errorf("yahoo returned non-json body: %s", preview(body))
				continue
			}
			yc = yahooChartResp{}
			if err := json.Unmarshal(body, &yc); err != nil {
				lastErr = fmt.Errorf("failed to parse yahoo json: %v; body: %s", err, preview(body))
				continue
			}
			if yc.Chart.Error != nil {
				// Unknown symbols come back as 404 with a chart error block.
				if resp.StatusCode == http.StatusNotFound || strings.EqualFold(yc.Chart.Error.Code, "Not Found") {
					return nil, fmt.Errorf("%s: %s: %w", symbol, yc.Chart.Error.Description, ErrEmptyResult)
				}
				lastErr = fmt.Errorf("yahoo api error: %s", yc.Chart.Error.Description)
				continue
			}
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("yahoo %s returned %d: %s", host, resp.StatusCode, preview(body))
				continue
			}
			if len(yc.Chart.Result) == 0 {
				return nil, fmt.Errorf("%s: %w", symbol, ErrEmptyResult)
			}
			return &yc, nil
		}
		if attempt < len(p.backoffs) {
			logrus.Debugf("yahoo: %s attempt %d failed: %v", symbol, attempt+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.backoffs[attempt]):
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("yahoo: no hosts configured")
	}
	return nil, lastErr
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
