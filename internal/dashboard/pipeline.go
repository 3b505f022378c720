package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"optionsViewer/internal/finance"
	"optionsViewer/internal/thetadata"
)

// OptionSource is the historical option data client.
type OptionSource interface {
	Lister
	HistOptionEOD(ctx context.Context, q thetadata.Query) ([]thetadata.EODRow, error)
}

// Pipeline runs one render pass: fetch option and underlying history, merge
// and pivot. No pass shares mutable data with another; State travels in and
// out explicitly.
type Pipeline struct {
	options OptionSource
	quotes  finance.QuoteProvider
	variant Variant
	now     func() time.Time
}

func NewPipeline(options OptionSource, quotes finance.QuoteProvider, v Variant) *Pipeline {
	return &Pipeline{options: options, quotes: quotes, variant: v, now: time.Now}
}

func (p *Pipeline) Variant() Variant { return p.variant }

// Render applies actions to st in order, then builds the view for sel.
// Data problems never fail a pass; they become notices and smaller views.
// The error is only for an action that does not apply, in which case the
// returned state is st unchanged.
func (p *Pipeline) Render(ctx context.Context, sel Selection, st State, actions ...Action) (*View, State, error) {
	next := st.Normalize()
	for _, a := range actions {
		var err error
		if next, err = next.Apply(a, p.variant); err != nil {
			return nil, st.Normalize(), err
		}
	}
	return p.Build(ctx, sel, next), next, nil
}

// Build fetches and reshapes the data for sel under st.
func (p *Pipeline) Build(ctx context.Context, sel Selection, st State) *View {
	if !p.variant.RightSelectable {
		sel.Right = thetadata.Call
	}
	v := &View{
		ID:        uuid.NewString(),
		CreatedAt: p.now(),
		Selection: sel,
		State:     st.Normalize(),
	}
	log := logrus.WithFields(logrus.Fields{"view": v.ID, "selection": sel.String()})

	primaryQ, secondaryQ := sel.Queries()
	v.Primary = p.fetchOption(ctx, primaryQ)
	switch {
	case v.Primary.NoData():
		v.addNotice(NoOptionDataNotice)
	case v.Primary.Unavailable:
		log.WithError(v.Primary.Reason).Warn("dashboard: primary option fetch failed")
		v.addNotice("Option data unavailable for %s: %v", v.Primary.Series.Label(), v.Primary.Reason)
	}
	if secondaryQ != nil {
		res := p.fetchOption(ctx, *secondaryQ)
		v.Secondary = &res
		switch {
		case res.NoData():
			v.addNotice("No data available for expiration %s.", res.Series.Label())
		case res.Unavailable:
			log.WithError(res.Reason).Warn("dashboard: secondary option fetch failed")
			v.addNotice("Option data unavailable for %s: %v", res.Series.Label(), res.Reason)
		}
	}

	p.fetchUnderlying(ctx, v, log)

	if v.Secondary != nil {
		v.Table = Merge(v.Primary, *v.Secondary)
	} else {
		v.Table = Merge(v.Primary)
	}
	v.Matrix = Pivot(v.Table, v.State.Metric)
	log.WithFields(logrus.Fields{
		"rows":       len(v.Table.Rows),
		"columns":    len(v.Matrix.Columns),
		"underlying": len(v.Underlying),
	}).Debug("dashboard: view built")
	return v
}

func (p *Pipeline) fetchOption(ctx context.Context, q thetadata.Query) FetchResult {
	rows, err := p.options.HistOptionEOD(ctx, q)
	if err != nil {
		return Unavailable(q.Expiration, err)
	}
	if len(rows) == 0 {
		return Unavailable(q.Expiration, thetadata.ErrNoData)
	}
	norm := make([]thetadata.EODRow, len(rows))
	for i, r := range rows {
		r.Date = NormalizeDate(r.Date)
		norm[i] = r
	}
	return Available(OptionSeries{Expiration: q.Expiration, Rows: norm})
}

// fetchUnderlying fills the stock panel. An empty or failed history leaves
// the latest price at 0; missing metadata leaves the name empty.
func (p *Pipeline) fetchUnderlying(ctx context.Context, v *View, log *logrus.Entry) {
	sel := v.Selection
	v.Meta = finance.Meta{Symbol: sel.Root}
	if p.quotes == nil {
		return
	}
	// The quote end is exclusive; include the selected end day.
	bars, err := p.quotes.History(ctx, sel.Root, NormalizeDate(sel.Start), NormalizeDate(sel.End).AddDate(0, 0, 1))
	switch {
	case errors.Is(err, finance.ErrEmptyResult):
		v.addNotice("No price history for %s in the selected range.", sel.Root)
	case err != nil:
		log.WithError(err).Warn("dashboard: underlying history failed")
		v.addNotice("Price history unavailable for %s.", sel.Root)
	default:
		for i := range bars {
			bars[i].Date = NormalizeDate(bars[i].Date)
		}
		v.Underlying = bars
	}
	v.LatestPrice = finance.LatestClose(v.Underlying)

	meta, err := p.quotes.Metadata(ctx, sel.Root)
	if err != nil {
		log.WithError(err).Debug("dashboard: metadata unavailable")
		return
	}
	v.Meta.LongName = meta.LongName
	v.Meta.Currency = meta.Currency
}
