package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"optionsViewer/internal/dashboard"
	"optionsViewer/internal/export"
	"optionsViewer/internal/finance"
	"optionsViewer/internal/storage"
	"optionsViewer/internal/thetadata"
)

func day(s string) time.Time {
	t, err := time.Parse(dashboard.ExpirationLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) photos() []tgbotapi.PhotoConfig {
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSender) reset() { f.sent, f.requests = nil, nil }

type fakeSource struct {
	rows  map[string][]thetadata.EODRow
	delay time.Duration
}

func (f *fakeSource) Roots(ctx context.Context) ([]string, error) {
	return []string{"XYZ", "XYA", "ABC"}, nil
}

func (f *fakeSource) Expirations(ctx context.Context, root string) ([]time.Time, error) {
	return []time.Time{day("2024-06-21"), day("2024-07-19")}, nil
}

func (f *fakeSource) Strikes(ctx context.Context, root string, exp time.Time) ([]decimal.Decimal, error) {
	return []decimal.Decimal{decimal.NewFromInt(95), decimal.NewFromInt(100)}, nil
}

func (f *fakeSource) HistOptionEOD(ctx context.Context, q thetadata.Query) ([]thetadata.EODRow, error) {
	time.Sleep(f.delay)
	rows, ok := f.rows[dashboard.FormatExpiration(q.Expiration)]
	if !ok {
		return nil, thetadata.ErrNoData
	}
	return rows, nil
}

type fakeQuotes struct{}

func (fakeQuotes) Name() string { return "fake" }

func (fakeQuotes) History(ctx context.Context, symbol string, start, end time.Time) ([]finance.Bar, error) {
	return []finance.Bar{
		{Date: day("2024-01-02"), Open: 100, High: 102, Low: 99, Close: 101},
		{Date: day("2024-01-03"), Open: 101, High: 103, Low: 100, Close: 102.46},
	}, nil
}

func (fakeQuotes) Metadata(ctx context.Context, symbol string) (finance.Meta, error) {
	return finance.Meta{Symbol: symbol, LongName: "XYZ Corp"}, nil
}

type stubCharts struct{}

func (stubCharts) Line(string, []time.Time, []finance.LineSeries) ([]byte, error) {
	return []byte("line"), nil
}

func (stubCharts) Scatter(string, []time.Time, []finance.LineSeries) ([]byte, error) {
	return []byte("scatter"), nil
}

func (stubCharts) Candlestick(string, []finance.Bar) ([]byte, error) { return []byte("candle"), nil }

func (stubCharts) UsagePie(counts map[string]int, days int) ([]byte, error) { return []byte("pie"), nil }

func eod(date string, close float64, volume int64) thetadata.EODRow {
	return thetadata.EODRow{Date: day(date), Open: close, High: close, Low: close, Close: close, Volume: volume}
}

func newTestHandlers(t *testing.T, v dashboard.Variant) (*Handlers, *fakeSender, *storage.Store) {
	t.Helper()
	return newTestHandlersWithSource(t, v, &fakeSource{rows: map[string][]thetadata.EODRow{
		"2024-06-21": {eod("2024-01-02", 5.1, 10), eod("2024-01-03", 5.3, 12)},
		"2024-07-19": {eod("2024-01-03", 7.4, 3)},
	}})
}

func newTestHandlersWithSource(t *testing.T, v dashboard.Variant, src *fakeSource) (*Handlers, *fakeSender, *storage.Store) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.InitSchema(db); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	store := storage.NewStore(db)

	sender := &fakeSender{}
	h := NewHandlers(sender, Deps{
		Store:     store,
		Resolver:  dashboard.NewResolver(src, v),
		Pipeline:  dashboard.NewPipeline(src, fakeQuotes{}, v),
		Presenter: dashboard.NewPresenter(stubCharts{}),
		Usage:     stubCharts{},
		Exporter:  export.NewWriter(t.TempDir()),
		Timeout:   5 * time.Second,
	})
	return h, sender, store
}

func message(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: 99},
		Date: int(time.Now().Unix()),
		Text: text,
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    dashboard.Action
		wantErr bool
	}{
		{"stock:line", dashboard.Action{Target: dashboard.TargetStockStyle, Value: "line"}, false},
		{"option:candlestick", dashboard.Action{Target: dashboard.TargetOptionStyle, Value: "candlestick"}, false},
		{"metric:volume", dashboard.Action{Target: dashboard.TargetMetric, Value: "volume"}, false},
		{"mode:table", dashboard.Action{Target: dashboard.TargetMode, Value: "table"}, false},
		{"volume", dashboard.Action{}, true},
		{"color:red", dashboard.Action{}, true},
	}
	for _, tt := range tests {
		got, err := parseCallback(tt.data)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCallback(%q) err = %v, wantErr %v", tt.data, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseCallback(%q) = %+v, want %+v", tt.data, got, tt.want)
		}
	}
}

func TestParseOption(t *testing.T) {
	prev := dashboard.Selection{Start: day("2024-01-01"), End: day("2024-03-01"), Secondary: day("2024-09-20")}

	g := reOption.FindStringSubmatch("/option xyz 20240621 172.5 put 2024-07-19")
	if g == nil {
		t.Fatal("regexp did not match")
	}
	sel, err := parseOption(g, prev, dashboard.DefaultVariant())
	if err != nil {
		t.Fatalf("parseOption: %v", err)
	}
	if sel.Root != "XYZ" || sel.Right != thetadata.Put || !sel.Strike.Equal(decimal.RequireFromString("172.5")) {
		t.Errorf("sel = %+v", sel)
	}
	if !sel.Expiration.Equal(day("2024-06-21")) || !sel.Secondary.Equal(day("2024-07-19")) {
		t.Errorf("expirations = %v / %v", sel.Expiration, sel.Secondary)
	}
	if !sel.Start.Equal(prev.Start) || !sel.End.Equal(prev.End) {
		t.Errorf("range not kept: %v..%v", sel.Start, sel.End)
	}

	g = reOption.FindStringSubmatch("/option XYZ 2024-06-21 100")
	sel, err = parseOption(g, prev, dashboard.DefaultVariant())
	if err != nil {
		t.Fatalf("parseOption: %v", err)
	}
	if sel.Right != thetadata.Call || sel.HasSecondary() {
		t.Errorf("defaults: right = %s, secondary = %v", sel.Right, sel.Secondary)
	}

	callsOnly := dashboard.Variant{RightSelectable: false}
	g = reOption.FindStringSubmatch("/option XYZ 2024-06-21 100 put")
	if _, err := parseOption(g, prev, callsOnly); err == nil {
		t.Error("expected error choosing a put when only calls are offered")
	}
	for _, arg := range []string{"call", "C"} {
		g = reOption.FindStringSubmatch("/option XYZ 2024-06-21 100 " + arg)
		sel, err := parseOption(g, prev, callsOnly)
		if err != nil {
			t.Errorf("calls only, %q: %v", arg, err)
			continue
		}
		if sel.Right != thetadata.Call {
			t.Errorf("calls only, %q: right = %s", arg, sel.Right)
		}
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"/option XYZ 2024-06-21 100": "option",
		"/Show@optionsbot":           "show",
		"hello":                      "",
	}
	for in, want := range tests {
		if got := commandName(in); got != want {
			t.Errorf("commandName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestControlsMarksCurrentChoice(t *testing.T) {
	st := dashboard.InitialState()
	st.Metric = dashboard.MetricVolume

	kb := controls(st, dashboard.DefaultVariant())
	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("rows = %d, want 4", len(kb.InlineKeyboard))
	}
	metric := kb.InlineKeyboard[2]
	if metric[1].Text != "• Volume" || *metric[1].CallbackData != "metric:volume" {
		t.Errorf("volume button = %q / %q", metric[1].Text, *metric[1].CallbackData)
	}
	if metric[0].Text != "Price" {
		t.Errorf("price button = %q", metric[0].Text)
	}
	if got := *kb.InlineKeyboard[1][2].CallbackData; got != "option:candlestick" {
		t.Errorf("option candlestick data = %q", got)
	}

	shared := controls(st, dashboard.Variant{RightSelectable: true})
	if len(shared.InlineKeyboard) != 3 {
		t.Errorf("shared style rows = %d, want 3", len(shared.InlineKeyboard))
	}
}

func TestOptionCommandSendsView(t *testing.T) {
	h, sender, store := newTestHandlers(t, dashboard.DefaultVariant())

	h.HandleMessage(message(1, "/option XYZ 2024-06-21 100 call 2024-07-19"))

	msgs := sender.messages()
	if len(msgs) < 2 {
		t.Fatalf("messages = %d, want summary and controls", len(msgs))
	}
	if want := "Symbol: XYZ - XYZ Corp - Latest Price: 102.46"; msgs[0].Text != want {
		t.Errorf("summary = %q, want %q", msgs[0].Text, want)
	}
	if _, ok := msgs[len(msgs)-1].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("last message has no controls: %T", msgs[len(msgs)-1].ReplyMarkup)
	}

	photos := sender.photos()
	if len(photos) != 2 {
		t.Fatalf("photos = %d, want 2", len(photos))
	}
	if photos[0].Caption != "XYZ (XYZ Corp) Close" || photos[1].Caption != "Option Price Chart" {
		t.Errorf("captions = %q, %q", photos[0].Caption, photos[1].Caption)
	}

	sess, err := store.LoadSession(1)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Selection.Root != "XYZ" || !sess.Selection.Secondary.Equal(day("2024-07-19")) {
		t.Errorf("saved selection = %+v", sess.Selection)
	}
	if !sess.Selection.End.IsZero() {
		t.Errorf("open-ended range was pinned to %v", sess.Selection.End)
	}
}

func TestCallbackSwitchesToTable(t *testing.T) {
	h, sender, store := newTestHandlers(t, dashboard.DefaultVariant())
	h.HandleMessage(message(1, "/option XYZ 2024-06-21 100"))
	sender.reset()

	h.HandleCallback(&tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 99},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
		Data:    "mode:table",
	})

	if len(sender.requests) != 1 {
		t.Fatalf("callback answers = %d, want 1", len(sender.requests))
	}
	if cb, ok := sender.requests[0].(tgbotapi.CallbackConfig); !ok || cb.CallbackQueryID != "cb1" {
		t.Errorf("answer = %#v", sender.requests[0])
	}

	var table *tgbotapi.MessageConfig
	for _, m := range sender.messages() {
		if m.ParseMode == tgbotapi.ModeHTML {
			m := m
			table = &m
		}
	}
	if table == nil {
		t.Fatal("no table message sent")
	}
	if !strings.Contains(table.Text, "Option Data Table") || !strings.Contains(table.Text, "2024-06-21") {
		t.Errorf("table message = %q", table.Text)
	}
	if n := len(sender.photos()); n != 1 {
		t.Errorf("photos = %d, want only the stock chart", n)
	}

	sess, _ := store.LoadSession(1)
	if sess.State.Mode != dashboard.ModeTable {
		t.Errorf("saved mode = %s, want table", sess.State.Mode)
	}
}

func TestOptionCommandRejectsUnlistedStrike(t *testing.T) {
	h, sender, store := newTestHandlers(t, dashboard.DefaultVariant())
	h.HandleMessage(message(1, "/option XYZ 2024-06-21 101"))

	msgs := sender.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "Invalid selection: strike") {
		t.Fatalf("messages = %+v", msgs)
	}
	sess, _ := store.LoadSession(1)
	if sess.Selection.Complete() {
		t.Errorf("invalid selection was saved: %+v", sess.Selection)
	}
}

func TestListingCommands(t *testing.T) {
	h, sender, _ := newTestHandlers(t, dashboard.DefaultVariant())

	h.HandleMessage(message(1, "/exps xyz"))
	h.HandleMessage(message(1, "/strikes XYZ 2024-06-21"))
	h.HandleMessage(message(1, "/roots XY"))

	msgs := sender.messages()
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "2024-07-19\n2024-06-21") {
		t.Errorf("expirations not latest first: %q", msgs[0].Text)
	}
	if !strings.HasSuffix(msgs[1].Text, "95 100") {
		t.Errorf("strikes = %q", msgs[1].Text)
	}
	if !strings.Contains(msgs[2].Text, "XYA XYZ") || strings.Contains(msgs[2].Text, "ABC") {
		t.Errorf("roots = %q", msgs[2].Text)
	}
}

func TestExportSendsParquet(t *testing.T) {
	h, sender, _ := newTestHandlers(t, dashboard.DefaultVariant())
	h.HandleMessage(message(1, "/option XYZ 2024-06-21 100 call 2024-07-19"))
	sender.reset()

	h.HandleMessage(message(1, "/export"))

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	doc, ok := sender.sent[0].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("sent %T, want DocumentConfig", sender.sent[0])
	}
	path, ok := doc.File.(tgbotapi.FilePath)
	if !ok {
		t.Fatalf("file = %T", doc.File)
	}
	if _, err := os.Stat(string(path)); !os.IsNotExist(err) {
		t.Errorf("export file still on disk after sending: %v", err)
	}
	if !strings.Contains(doc.Caption, "(3 rows)") {
		t.Errorf("caption = %q", doc.Caption)
	}
}

func TestUsageCommand(t *testing.T) {
	h, sender, _ := newTestHandlers(t, dashboard.DefaultVariant())
	h.HandleMessage(message(1, "/help"))
	h.HandleMessage(message(1, "/help"))
	sender.reset()

	h.HandleMessage(message(1, "/usage 3"))

	photos := sender.photos()
	if len(photos) != 1 {
		t.Fatalf("photos = %d, want 1", len(photos))
	}
	if !strings.Contains(photos[0].Caption, "/help 2") || !strings.Contains(photos[0].Caption, "last 3 days") {
		t.Errorf("caption = %q", photos[0].Caption)
	}
}

func TestServeUpdate(t *testing.T) {
	h, _, _ := newTestHandlers(t, dashboard.DefaultVariant())

	rec := httptest.NewRecorder()
	serveUpdate(h, rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	serveUpdate(h, rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("empty update status = %d, want 200", rec.Code)
	}
}

func TestConcurrentCallbacksKeepBothChanges(t *testing.T) {
	src := &fakeSource{
		rows: map[string][]thetadata.EODRow{"2024-06-21": {eod("2024-01-02", 5.1, 10)}},
	}
	h, _, store := newTestHandlersWithSource(t, dashboard.DefaultVariant(), src)
	h.HandleMessage(message(1, "/option XYZ 2024-06-21 100"))
	src.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i, data := range []string{"mode:table", "metric:volume"} {
		wg.Add(1)
		go func(id, data string) {
			defer wg.Done()
			h.HandleCallback(&tgbotapi.CallbackQuery{
				ID:      id,
				From:    &tgbotapi.User{ID: 99},
				Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
				Data:    data,
			})
		}(strconv.Itoa(i), data)
	}
	wg.Wait()

	sess, err := store.LoadSession(1)
	if err != nil {
		t.Fatal(err)
	}
	if sess.State.Mode != dashboard.ModeTable || sess.State.Metric != dashboard.MetricVolume {
		t.Errorf("state = %+v, want table mode and volume metric", sess.State)
	}
}
