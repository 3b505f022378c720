package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"optionsViewer/internal/dashboard"
	"optionsViewer/internal/storage"
)

// Sender is the part of the Bot API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type UsageCharter interface {
	UsagePie(counts map[string]int, days int) ([]byte, error)
}

type Exporter interface {
	Write(v *dashboard.View) (string, error)
}

// Deps are the services behind the chat commands.
type Deps struct {
	Store     *storage.Store
	Resolver  *dashboard.Resolver
	Pipeline  *dashboard.Pipeline
	Presenter *dashboard.Presenter
	Usage     UsageCharter
	Exporter  Exporter
	Timeout   time.Duration
}

type Handlers struct {
	api Sender
	Deps

	mu    sync.Mutex
	chats map[int64]*sync.Mutex
}

// Telegram rejects longer messages.
const maxMessageLen = 4000

func NewHandlers(api Sender, d Deps) *Handlers {
	if d.Timeout <= 0 {
		d.Timeout = 90 * time.Second
	}
	return &Handlers{api: api, Deps: d, chats: map[int64]*sync.Mutex{}}
}

// lockChat serializes updates of one chat, so each load, apply, render and
// save of its session sees the previous one's result.
func (h *Handlers) lockChat(chatID int64) func() {
	h.mu.Lock()
	l, ok := h.chats[chatID]
	if !ok {
		l = &sync.Mutex{}
		h.chats[chatID] = l
	}
	h.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	txt := strings.TrimSpace(m.Text)
	if txt == "" {
		return
	}
	chatID := m.Chat.ID
	defer h.lockChat(chatID)()

	if cmd := commandName(txt); cmd != "" {
		var userID int64
		if m.From != nil {
			userID = m.From.ID
		}
		if err := h.Store.RecordUsage(chatID, userID, cmd, int64(m.Date)); err != nil {
			logrus.WithError(err).Warn("telegram: recording usage failed")
		}
	}

	switch {
	case reHelp.MatchString(txt):
		h.reply(chatID, helpText)

	case reRoots.MatchString(txt):
		g := reRoots.FindStringSubmatch(txt)
		h.handleRoots(chatID, g[1])

	case reExps.MatchString(txt):
		g := reExps.FindStringSubmatch(txt)
		h.handleExpirations(chatID, g[1])

	case reStrikes.MatchString(txt):
		g := reStrikes.FindStringSubmatch(txt)
		exp, err := dashboard.ParseDay(g[2])
		if err != nil {
			h.reply(chatID, err.Error())
			return
		}
		h.handleStrikes(chatID, g[1], exp)

	case reOption.MatchString(txt):
		g := reOption.FindStringSubmatch(txt)
		sess, ok := h.session(chatID)
		if !ok {
			return
		}
		sel, err := parseOption(g, sess.Selection, h.Pipeline.Variant())
		if err != nil {
			h.reply(chatID, "Invalid option: "+err.Error())
			return
		}
		h.show(sess, sel)

	case reRange.MatchString(txt):
		g := reRange.FindStringSubmatch(txt)
		h.handleRange(chatID, g[1], g[2])

	case reMetric.MatchString(txt):
		g := reMetric.FindStringSubmatch(txt)
		h.applyAndShow(chatID, dashboard.Action{Target: dashboard.TargetMetric, Value: strings.ToLower(g[1])}, "")

	case reMode.MatchString(txt):
		g := reMode.FindStringSubmatch(txt)
		h.applyAndShow(chatID, dashboard.Action{Target: dashboard.TargetMode, Value: strings.ToLower(g[1])}, "")

	case reStyle.MatchString(txt):
		g := reStyle.FindStringSubmatch(txt)
		h.applyAndShow(chatID, dashboard.Action{Target: dashboard.Target(strings.ToLower(g[1])), Value: strings.ToLower(g[2])}, "")

	case reShow.MatchString(txt):
		sess, ok := h.session(chatID)
		if !ok {
			return
		}
		h.show(sess, sess.Selection)

	case reExport.MatchString(txt):
		h.handleExport(chatID)

	case reUsage.MatchString(txt):
		days := 7
		if g := reUsage.FindStringSubmatch(txt); g[1] != "" {
			days, _ = strconv.Atoi(g[1])
			if days < 1 {
				days = 1
			}
			if days > 365 {
				days = 365
			}
		}
		h.handleUsage(chatID, days)

	case strings.HasPrefix(txt, "/"):
		h.reply(chatID, "Unknown command or arguments. Send /help for usage.")
	}
}

// HandleCallback applies a control button to the chat's state and redraws.
func (h *Handlers) HandleCallback(q *tgbotapi.CallbackQuery) {
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID
	defer h.lockChat(chatID)()

	a, err := parseCallback(q.Data)
	if err != nil {
		logrus.WithError(err).Warn("telegram: bad callback")
		h.answer(q.ID, "Unknown control")
		return
	}
	if q.From != nil {
		if err := h.Store.RecordUsage(chatID, q.From.ID, string(a.Target), time.Now().Unix()); err != nil {
			logrus.WithError(err).Warn("telegram: recording usage failed")
		}
	}
	h.applyAndShow(chatID, a, q.ID)
}

func (h *Handlers) handleRoots(chatID int64, prefix string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	roots, err := h.Resolver.Roots(ctx, prefix)
	if err != nil {
		h.reply(chatID, "Couldn't list roots: "+err.Error())
		return
	}
	if len(roots) == 0 {
		h.reply(chatID, "No option roots match "+strings.ToUpper(prefix)+".")
		return
	}
	const limit = 200
	more := ""
	if len(roots) > limit {
		more = fmt.Sprintf("\n… and %d more; narrow with /roots PREFIX", len(roots)-limit)
		roots = roots[:limit]
	}
	h.reply(chatID, fmt.Sprintf("Roots (%d):\n%s%s", len(roots), strings.Join(roots, " "), more))
}

func (h *Handlers) handleExpirations(chatID int64, root string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	root = strings.ToUpper(root)
	exps, err := h.Resolver.Expirations(ctx, root)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Couldn't list expirations for %s: %v", root, err))
		return
	}
	if len(exps) == 0 {
		h.reply(chatID, "No expirations listed for "+root+".")
		return
	}
	lines := make([]string, len(exps))
	for i, e := range exps {
		lines[i] = dashboard.FormatExpiration(e)
	}
	h.reply(chatID, truncate(fmt.Sprintf("%s expirations (latest first):\n%s", root, strings.Join(lines, "\n"))))
}

func (h *Handlers) handleStrikes(chatID int64, root string, exp time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	root = strings.ToUpper(root)
	strikes, err := h.Resolver.Strikes(ctx, root, exp)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Couldn't list strikes for %s %s: %v", root, dashboard.FormatExpiration(exp), err))
		return
	}
	if len(strikes) == 0 {
		h.reply(chatID, fmt.Sprintf("No strikes listed for %s %s.", root, dashboard.FormatExpiration(exp)))
		return
	}
	vals := make([]string, len(strikes))
	for i, s := range strikes {
		vals[i] = s.String()
	}
	h.reply(chatID, truncate(fmt.Sprintf("%s %s strikes:\n%s", root, dashboard.FormatExpiration(exp), strings.Join(vals, " "))))
}

func (h *Handlers) handleRange(chatID int64, startArg, endArg string) {
	sess, ok := h.session(chatID)
	if !ok {
		return
	}
	sel := sess.Selection
	start, err := dashboard.ParseDay(startArg)
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}
	sel.Start, sel.End = start, time.Time{}
	if endArg != "" {
		if sel.End, err = dashboard.ParseDay(endArg); err != nil {
			h.reply(chatID, err.Error())
			return
		}
	}
	if !sel.End.IsZero() && sel.End.Before(sel.Start) {
		h.reply(chatID, "Invalid range: end is before start.")
		return
	}
	if !sel.Complete() {
		sess.Selection = sel
		h.save(sess)
		h.reply(chatID, "Range set. Pick a contract with /option ROOT EXP STRIKE.")
		return
	}
	h.show(sess, sel)
}

// applyAndShow changes one display control and redraws the current
// selection. callbackID is set when a button triggered the change.
func (h *Handlers) applyAndShow(chatID int64, a dashboard.Action, callbackID string) {
	sess, ok := h.session(chatID)
	if !ok {
		return
	}
	next, err := sess.State.Apply(a, h.Pipeline.Variant())
	if err != nil {
		if callbackID != "" {
			h.answer(callbackID, err.Error())
		} else {
			h.reply(chatID, err.Error())
		}
		return
	}
	if callbackID != "" {
		h.answer(callbackID, "Updated")
	}
	sess.State = next
	if !sess.Selection.Complete() {
		h.save(sess)
		h.reply(chatID, "Display updated. Pick a contract with /option ROOT EXP STRIKE.")
		return
	}
	h.show(sess, sess.Selection)
}

// show resolves sel, runs one rendering pass and sends the result. The
// session keeps sel only if it resolves.
func (h *Handlers) show(sess storage.Session, sel dashboard.Selection) {
	chatID := sess.ChatID
	if !sel.Complete() {
		h.reply(chatID, "Nothing selected yet. Use /option ROOT EXP STRIKE [call|put] [EXP2].")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	resolved, err := h.Resolver.Resolve(ctx, sel)
	if err != nil {
		var se *dashboard.SelectionError
		if errors.As(err, &se) {
			h.reply(chatID, "Invalid selection: "+se.Error())
		} else {
			h.reply(chatID, "Couldn't check the selection: "+err.Error())
		}
		return
	}
	view, st, err := h.Pipeline.Render(ctx, resolved, sess.State)
	if err != nil {
		h.reply(chatID, err.Error())
		return
	}

	if sel.End.IsZero() {
		resolved.End = time.Time{}
	}
	sess.Selection, sess.State = resolved, st
	h.save(sess)

	h.send(chatID, h.Presenter.Present(view), view)
}

func (h *Handlers) send(chatID int64, out dashboard.Output, v *dashboard.View) {
	h.reply(chatID, out.Summary)
	if len(out.Notices) > 0 {
		h.reply(chatID, strings.Join(out.Notices, "\n"))
	}
	base := strings.ToUpper(v.Selection.Root) + "_" + dashboard.FormatExpiration(v.Selection.Expiration)
	if len(out.StockChart) > 0 {
		h.photo(chatID, base+"_stock.png", out.StockChart, out.StockTitle)
	}
	switch {
	case len(out.OptionChart) > 0:
		h.photo(chatID, base+"_option.png", out.OptionChart, out.OptionTitle)
	case out.OptionTable != "":
		msg := tgbotapi.NewMessage(chatID, "<b>"+html.EscapeString(out.OptionTitle)+"</b>\n<pre>"+
			html.EscapeString(truncate(out.OptionTable))+"</pre>")
		msg.ParseMode = tgbotapi.ModeHTML
		h.sendLogged(msg)
	}
	msg := tgbotapi.NewMessage(chatID, "Display: "+describe(v.State))
	msg.ReplyMarkup = controls(v.State, h.Pipeline.Variant())
	h.sendLogged(msg)
}

func (h *Handlers) handleExport(chatID int64) {
	sess, ok := h.session(chatID)
	if !ok {
		return
	}
	if !sess.Selection.Complete() {
		h.reply(chatID, "Nothing to export yet. Use /option first.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()
	sel, err := h.Resolver.Resolve(ctx, sess.Selection)
	if err != nil {
		h.reply(chatID, "Invalid selection: "+err.Error())
		return
	}
	view := h.Pipeline.Build(ctx, sel, sess.State)
	path, err := h.Exporter.Write(view)
	if errors.Is(err, dashboard.ErrEmptyPanel) {
		h.reply(chatID, dashboard.NoOptionDataNotice)
		return
	}
	if err != nil {
		logrus.WithError(err).Error("telegram: export failed")
		h.reply(chatID, "Export failed: "+err.Error())
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("%s (%d rows)", filepath.Base(path), len(view.Table.Rows))
	h.sendLogged(doc)
	if err := os.Remove(path); err != nil {
		logrus.WithError(err).Warn("telegram: removing export file failed")
	}
}

func (h *Handlers) handleUsage(chatID int64, days int) {
	since := time.Now().AddDate(0, 0, -days).Unix()
	counts, err := h.Store.UsageCounts(since)
	if err != nil {
		h.reply(chatID, "Usage failed: "+err.Error())
		return
	}
	if len(counts) == 0 {
		h.reply(chatID, fmt.Sprintf("No commands in the last %d days.", days))
		return
	}
	cmds := make([]string, 0, len(counts))
	for c := range counts {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool {
		if counts[cmds[i]] != counts[cmds[j]] {
			return counts[cmds[i]] > counts[cmds[j]]
		}
		return cmds[i] < cmds[j]
	})
	var b strings.Builder
	fmt.Fprintf(&b, "Usage, last %d days:\n", days)
	for _, c := range cmds {
		fmt.Fprintf(&b, "/%s %d\n", c, counts[c])
	}
	img, err := h.Usage.UsagePie(counts, days)
	if err != nil {
		logrus.WithError(err).Warn("telegram: usage chart failed")
		h.reply(chatID, b.String())
		return
	}
	h.photo(chatID, "usage.png", img, strings.TrimSpace(b.String()))
}

func (h *Handlers) session(chatID int64) (storage.Session, bool) {
	sess, err := h.Store.LoadSession(chatID)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("telegram: loading session failed")
		h.reply(chatID, "Session unavailable, try again.")
		return storage.Session{}, false
	}
	return sess, true
}

func (h *Handlers) save(sess storage.Session) {
	if err := h.Store.SaveSession(sess); err != nil {
		logrus.WithError(err).WithField("chat_id", sess.ChatID).Error("telegram: saving session failed")
	}
}

func (h *Handlers) photo(chatID int64, name string, img []byte, caption string) {
	p := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: img})
	p.Caption = caption
	h.sendLogged(p)
}

func (h *Handlers) answer(callbackID, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logrus.WithError(err).Debug("telegram: answering callback failed")
	}
}

func (h *Handlers) reply(chatID int64, text string) {
	h.sendLogged(tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) sendLogged(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		logrus.WithError(err).Warn("telegram: send failed")
	}
}

func describe(st dashboard.State) string {
	return fmt.Sprintf("stock %s, option %s, %s, %s", st.StockStyle, st.OptionStyle, st.Metric, st.Mode)
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := strings.LastIndexByte(s[:maxMessageLen], '\n')
	if cut <= 0 {
		cut = maxMessageLen
	}
	return s[:cut] + "\n…"
}
