// Package thetadata is a small client for the Theta Terminal v2 REST API:
// option root/expiration/strike listings and end-of-day option history.
package thetadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "http://127.0.0.1:25510"
	defaultTimeout = 30 * time.Second
	maxPages       = 50
)

// eodFormat is the v2 EOD column order, used when a response omits header.format.
var eodFormat = []string{"ms_of_day", "ms_of_day2", "open", "high", "low", "close", "volume", "count",
	"bid_size", "bid_exchange", "bid", "bid_condition", "ask_size", "ask_exchange", "ask", "ask_condition", "date"}

type envelope struct {
	Header struct {
		LatencyMs int      `json:"latency_ms"`
		ErrorType string   `json:"error_type"`
		ErrorMsg  string   `json:"error_msg"`
		NextPage  string   `json:"next_page"`
		Format    []string `json:"format"`
	} `json:"header"`
	Response json.RawMessage `json:"response"`
}

// Client talks to a running Theta Terminal. Every call is a single
// request/response cycle; no connection state is kept between calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Roots lists every option root symbol, sorted.
func (c *Client) Roots(ctx context.Context) ([]string, error) {
	pages, err := c.get(ctx, "/v2/list/roots/option", nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range pages {
		var roots []string
		if err := json.Unmarshal(p.Response, &roots); err != nil {
			return nil, fmt.Errorf("decoding roots: %w", err)
		}
		out = append(out, roots...)
	}
	sort.Strings(out)
	return out, nil
}

// Expirations lists the expiration dates for root, newest first.
func (c *Client) Expirations(ctx context.Context, root string) ([]time.Time, error) {
	pages, err := c.get(ctx, "/v2/list/expirations", url.Values{"root": {strings.ToUpper(root)}})
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, p := range pages {
		var raw []int64
		if err := json.Unmarshal(p.Response, &raw); err != nil {
			return nil, fmt.Errorf("decoding expirations: %w", err)
		}
		for _, v := range raw {
			d, err := ParseDate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

// Strikes lists the strikes (in dollars) for root at exp, ascending.
func (c *Client) Strikes(ctx context.Context, root string, exp time.Time) ([]decimal.Decimal, error) {
	params := url.Values{"root": {strings.ToUpper(root)}, "exp": {FormatDate(exp)}}
	pages, err := c.get(ctx, "/v2/list/strikes", params)
	if err != nil {
		return nil, err
	}
	var out []decimal.Decimal
	for _, p := range pages {
		var raw []int64
		if err := json.Unmarshal(p.Response, &raw); err != nil {
			return nil, fmt.Errorf("decoding strikes: %w", err)
		}
		for _, v := range raw {
			out = append(out, StrikeFromWire(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// HistOptionEOD returns the EOD rows for q sorted by date, or ErrNoData.
func (c *Client) HistOptionEOD(ctx context.Context, q Query) ([]EODRow, error) {
	pages, err := c.get(ctx, "/v2/hist/option/eod", q.Params())
	if err != nil {
		return nil, err
	}
	var rows []EODRow
	for _, p := range pages {
		decoded, err := decodeEOD(p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, decoded...)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func decodeEOD(p envelope) ([]EODRow, error) {
	format := p.Header.Format
	if len(format) == 0 {
		format = eodFormat
	}
	col := make(map[string]int, len(format))
	for i, name := range format {
		col[strings.ToLower(name)] = i
	}
	for _, need := range []string{"open", "high", "low", "close", "volume", "date"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("decoding eod: response format lacks %q column", need)
		}
	}

	var raw [][]float64
	if err := json.Unmarshal(p.Response, &raw); err != nil {
		return nil, fmt.Errorf("decoding eod: %w", err)
	}
	at := func(row []float64, name string) float64 {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return 0
		}
		return row[i]
	}

	rows := make([]EODRow, 0, len(raw))
	for _, r := range raw {
		d, err := ParseDate(int64(at(r, "date")))
		if err != nil {
			return nil, err
		}
		rows = append(rows, EODRow{
			Date:   d,
			Open:   at(r, "open"),
			High:   at(r, "high"),
			Low:    at(r, "low"),
			Close:  at(r, "close"),
			Volume: int64(at(r, "volume")),
			Count:  int64(at(r, "count")),
			Bid:    at(r, "bid"),
			Ask:    at(r, "ask"),
		})
	}
	return rows, nil
}

// get performs the request and follows header.next_page. A later page
// answering no-data ends the listing; the pages already read are kept.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]envelope, error) {
	next := c.baseURL + path
	if len(params) > 0 {
		next += "?" + params.Encode()
	}
	var pages []envelope
	for i := 0; next != "" && i < maxPages; i++ {
		env, err := c.do(ctx, path, next)
		if i > 0 && errors.Is(err, ErrNoData) {
			break
		}
		if err != nil {
			return nil, err
		}
		pages = append(pages, env)
		next = env.Header.NextPage
		if next == "null" {
			next = ""
		}
	}
	return pages, nil
}

func (c *Client) do(ctx context.Context, endpoint, fullURL string) (envelope, error) {
	var env envelope
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return env, fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	logrus.Debugf("thetadata: GET %s", fullURL)
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return env, fmt.Errorf("thetadata %s: %w", endpoint, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return env, fmt.Errorf("reading thetadata %s response: %w", endpoint, readErr)
	}
	logrus.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Debug("thetadata: response")

	if resp.StatusCode == statusNoData {
		return env, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return env, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("decoding thetadata %s envelope: %w", endpoint, err)
	}
	switch et := strings.ToUpper(strings.TrimSpace(env.Header.ErrorType)); et {
	case "", "NULL":
	case "NO_DATA":
		return env, ErrNoData
	default:
		return env, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, ErrorType: et, Message: env.Header.ErrorMsg}
	}
	return env, nil
}
