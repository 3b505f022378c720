package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"optionsViewer/internal/dashboard"
	"optionsViewer/internal/thetadata"
)

// API serves the dashboard over HTTP. It keeps no per-client state: the
// selection and the display controls come with every request.
type API struct {
	resolver  *dashboard.Resolver
	pipeline  *dashboard.Pipeline
	presenter *dashboard.Presenter
	timeout   time.Duration
}

func NewAPI(r *dashboard.Resolver, p *dashboard.Pipeline, pr *dashboard.Presenter, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &API{resolver: r, pipeline: p, presenter: pr, timeout: timeout}
}

func NewHTTPMux(webhook http.HandlerFunc, api *API) *http.ServeMux {
	mux := http.NewServeMux()
	if webhook != nil {
		mux.HandleFunc("/telegram/webhook", webhook)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	if api != nil {
		mux.HandleFunc("GET /api/roots", api.roots)
		mux.HandleFunc("GET /api/expirations", api.expirations)
		mux.HandleFunc("GET /api/strikes", api.strikes)
		mux.HandleFunc("GET /api/view", api.view)
		mux.HandleFunc("GET /api/chart/stock.png", api.stockChart)
		mux.HandleFunc("GET /api/chart/option.png", api.optionChart)
	}
	return mux
}

func ListenAndServe(addr string, mux *http.ServeMux) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (a *API) roots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	roots, err := a.resolver.Roots(ctx, r.URL.Query().Get("prefix"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roots": roots})
}

func (a *API) expirations(w http.ResponseWriter, r *http.Request) {
	root := r.URL.Query().Get("root")
	if root == "" {
		writeError(w, &dashboard.SelectionError{Field: "root", Msg: "missing"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	exps, err := a.resolver.Expirations(ctx, root)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, len(exps))
	for i, e := range exps {
		out[i] = dashboard.FormatExpiration(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"root": strings.ToUpper(root), "expirations": out})
}

func (a *API) strikes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	root := q.Get("root")
	if root == "" {
		writeError(w, &dashboard.SelectionError{Field: "root", Msg: "missing"})
		return
	}
	exp, err := dashboard.ParseDay(q.Get("exp"))
	if err != nil {
		writeError(w, &dashboard.SelectionError{Field: "exp", Msg: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	strikes, err := a.resolver.Strikes(ctx, root, exp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"root":       strings.ToUpper(root),
		"expiration": dashboard.FormatExpiration(exp),
		"strikes":    strikes,
	})
}

type viewResponse struct {
	ID          string                `json:"id"`
	Summary     string                `json:"summary"`
	Selection   dashboard.Selection   `json:"selection"`
	State       dashboard.State       `json:"state"`
	LatestPrice float64               `json:"latest_price"`
	StockTitle  string                `json:"stock_title,omitempty"`
	OptionTitle string                `json:"option_title,omitempty"`
	Notices     []string              `json:"notices"`
	Rows        []dashboard.MergedRow `json:"rows"`
	Matrix      *matrixJSON           `json:"matrix,omitempty"`
}

// matrixJSON holds null for missing cells.
type matrixJSON struct {
	Metric  dashboard.Metric `json:"metric"`
	Dates   []string         `json:"dates"`
	Columns []string         `json:"columns"`
	Values  [][]*float64     `json:"values"`
}

func (a *API) view(w http.ResponseWriter, r *http.Request) {
	v, err := a.build(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := viewResponse{
		ID:          v.ID,
		Summary:     v.Summary(),
		Selection:   v.Selection,
		State:       v.State,
		LatestPrice: v.LatestPrice,
		Notices:     append([]string{}, v.Notices...),
		Rows:        append([]dashboard.MergedRow{}, v.Table.Rows...),
	}
	if v.HasStock() {
		resp.StockTitle = v.StockTitle()
	}
	if v.HasOptions() {
		resp.OptionTitle = v.OptionTitle()
		resp.Matrix = encodeMatrix(v.Matrix)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) stockChart(w http.ResponseWriter, r *http.Request) {
	a.chart(w, r, a.presenter.StockChart)
}

func (a *API) optionChart(w http.ResponseWriter, r *http.Request) {
	a.chart(w, r, a.presenter.OptionChart)
}

func (a *API) chart(w http.ResponseWriter, r *http.Request, draw func(*dashboard.View) ([]byte, error)) {
	v, err := a.build(r)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := draw(v)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// build resolves the request's selection and renders one pass under the
// requested display state.
func (a *API) build(r *http.Request) (*dashboard.View, error) {
	q := r.URL.Query()
	sel, err := selectionFromQuery(q)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	sel, err = a.resolver.Resolve(ctx, sel)
	if err != nil {
		return nil, err
	}
	v, _, err := a.pipeline.Render(ctx, sel, dashboard.InitialState(), actionsFromQuery(q)...)
	if err != nil {
		return nil, &dashboard.SelectionError{Field: "state", Msg: err.Error()}
	}
	return v, nil
}

// selectionFromQuery reads root, exp, strike, right, exp2, start and end.
// Dates take YYYY-MM-DD or YYYYMMDD.
func selectionFromQuery(q url.Values) (dashboard.Selection, error) {
	sel := dashboard.Selection{Root: q.Get("root")}
	var err error
	if v := q.Get("exp"); v != "" {
		if sel.Expiration, err = dashboard.ParseDay(v); err != nil {
			return sel, &dashboard.SelectionError{Field: "exp", Msg: err.Error()}
		}
	}
	if v := q.Get("exp2"); v != "" && v != "none" {
		if sel.Secondary, err = dashboard.ParseDay(v); err != nil {
			return sel, &dashboard.SelectionError{Field: "exp2", Msg: err.Error()}
		}
	}
	if v := q.Get("strike"); v != "" {
		if sel.Strike, err = decimal.NewFromString(v); err != nil {
			return sel, &dashboard.SelectionError{Field: "strike", Msg: fmt.Sprintf("invalid strike %q", v)}
		}
	}
	if v := q.Get("right"); v != "" {
		if sel.Right, err = thetadata.ParseRight(v); err != nil {
			return sel, &dashboard.SelectionError{Field: "right", Msg: err.Error()}
		}
	}
	for field, dst := range map[string]*time.Time{"start": &sel.Start, "end": &sel.End} {
		if v := q.Get(field); v != "" {
			if *dst, err = dashboard.ParseDay(v); err != nil {
				return sel, &dashboard.SelectionError{Field: field, Msg: err.Error()}
			}
		}
	}
	return sel, nil
}

func actionsFromQuery(q url.Values) []dashboard.Action {
	var out []dashboard.Action
	for _, p := range []struct {
		param  string
		target dashboard.Target
	}{
		{"stock_style", dashboard.TargetStockStyle},
		{"option_style", dashboard.TargetOptionStyle},
		{"metric", dashboard.TargetMetric},
		{"mode", dashboard.TargetMode},
	} {
		if v := q.Get(p.param); v != "" {
			out = append(out, dashboard.Action{Target: p.target, Value: v})
		}
	}
	return out
}

func encodeMatrix(m dashboard.Matrix) *matrixJSON {
	out := &matrixJSON{
		Metric:  m.Metric,
		Dates:   make([]string, len(m.Dates)),
		Columns: append([]string{}, m.Columns...),
		Values:  make([][]*float64, len(m.Cells)),
	}
	for i, d := range m.Dates {
		out.Dates[i] = dashboard.FormatExpiration(d)
	}
	for i, row := range m.Cells {
		out.Values[i] = make([]*float64, len(row))
		for j, c := range row {
			if c.Valid {
				val := c.Value
				out.Values[i][j] = &val
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("http: encoding response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, dashboard.ErrInvalidSelection):
		status = http.StatusBadRequest
	case errors.Is(err, dashboard.ErrEmptyPanel):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	default:
		logrus.WithError(err).Warn("http: upstream failure")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
