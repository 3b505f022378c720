package thetadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestExpirationsSortedDescending(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/list/expirations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("root"); got != "XYZ" {
			t.Errorf("root = %q, want XYZ", got)
		}
		w.Write([]byte(`{"header":{"error_type":"null","format":null},"response":[20240621,20240719,20240517]}`))
	})

	exps, err := c.Expirations(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Expirations: %v", err)
	}
	want := []string{"2024-07-19", "2024-06-21", "2024-05-17"}
	if len(exps) != len(want) {
		t.Fatalf("got %d expirations, want %d", len(exps), len(want))
	}
	for i, w := range want {
		if got := exps[i].Format("2006-01-02"); got != w {
			t.Errorf("exps[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestStrikesConvertedToDollars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("exp"); got != "20240621" {
			t.Errorf("exp = %q, want 20240621", got)
		}
		w.Write([]byte(`{"header":{"error_type":"null"},"response":[172500,100000,95000]}`))
	})

	strikes, err := c.Strikes(context.Background(), "XYZ", time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Strikes: %v", err)
	}
	want := []string{"95", "100", "172.5"}
	for i, w := range want {
		if strikes[i].String() != w {
			t.Errorf("strikes[%d] = %s, want %s", i, strikes[i], w)
		}
	}
}

func TestHistOptionEOD(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("strike") != "100000" || q.Get("right") != "C" || q.Get("start_date") != "20240101" {
			t.Errorf("unexpected query %v", q)
		}
		w.Write([]byte(`{"header":{"error_type":"null","next_page":"null",
			"format":["ms_of_day","ms_of_day2","open","high","low","close","volume","count","date"]},
			"response":[[0,0,2.1,2.5,2.0,2.4,120,8,20240103],[0,0,2.0,2.2,1.9,2.1,80,5,20240102]]}`))
	})

	rows, err := c.HistOptionEOD(context.Background(), Query{
		Root:       "XYZ",
		Expiration: time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC),
		Strike:     decimal.NewFromInt(100),
		Right:      Call,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("HistOptionEOD: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("rows not sorted by date: first = %s", rows[0].Date)
	}
	if rows[1].Close != 2.4 || rows[1].Volume != 120 || rows[1].Count != 8 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestHistOptionEODFollowsNextPage(t *testing.T) {
	var srvURL string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/page2" {
			w.Write([]byte(`{"header":{"format":["open","high","low","close","volume","date"]},"response":[[1,1,1,1,1,20240105]]}`))
			return
		}
		w.Write([]byte(`{"header":{"next_page":"` + srvURL + `/page2","format":["open","high","low","close","volume","date"]},"response":[[1,1,1,1,1,20240104]]}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(srv.URL, time.Second)
	rows, err := c.HistOptionEOD(context.Background(), Query{Root: "XYZ", Right: Put})
	if err != nil {
		t.Fatalf("HistOptionEOD: %v", err)
	}
	if calls != 2 || len(rows) != 2 {
		t.Errorf("calls = %d, rows = %d; want 2 and 2", calls, len(rows))
	}
}

func TestHistOptionEODKeepsRowsWhenLaterPageIsEmpty(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			w.WriteHeader(statusNoData)
			w.Write([]byte("No data for the specified timeframe & contract."))
			return
		}
		w.Write([]byte(`{"header":{"next_page":"` + srvURL + `/page2","format":["open","high","low","close","volume","date"]},"response":[[1,1,1,1.5,7,20240104]]}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	c := NewClient(srv.URL, time.Second)
	rows, err := c.HistOptionEOD(context.Background(), Query{Root: "XYZ", Right: Call})
	if err != nil {
		t.Fatalf("HistOptionEOD: %v", err)
	}
	if len(rows) != 1 || rows[0].Close != 1.5 {
		t.Errorf("rows = %+v, want the first page's row", rows)
	}
}

func TestNoDataSignals(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status 472", statusNoData, "No data for the specified timeframe & contract."},
		{"error_type NO_DATA", http.StatusOK, `{"header":{"error_type":"NO_DATA","error_msg":"none"},"response":[]}`},
		{"empty response", http.StatusOK, `{"header":{"error_type":"null"},"response":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.HistOptionEOD(context.Background(), Query{Root: "XYZ", Right: Call})
			if !errors.Is(err, ErrNoData) {
				t.Errorf("err = %v, want ErrNoData", err)
			}
		})
	}
}

func TestAPIErrorIsNotNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("terminal disconnected"))
	})
	_, err := c.Roots(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoData) {
		t.Errorf("server error must not read as ErrNoData: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("err = %v, want *APIError with status 500", err)
	}
}

func TestStrikeWireRoundTrip(t *testing.T) {
	s := decimal.RequireFromString("172.5")
	if got := StrikeToWire(s); got != 172500 {
		t.Errorf("StrikeToWire(172.5) = %d, want 172500", got)
	}
	if got := StrikeFromWire(172500); !got.Equal(s) {
		t.Errorf("StrikeFromWire(172500) = %s, want 172.5", got)
	}
}

func TestParseRight(t *testing.T) {
	for in, want := range map[string]Right{"call": Call, "C": Call, "Put": Put, "p": Put} {
		got, err := ParseRight(in)
		if err != nil || got != want {
			t.Errorf("ParseRight(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRight("straddle"); err == nil {
		t.Error("ParseRight(straddle) should fail")
	}
}
