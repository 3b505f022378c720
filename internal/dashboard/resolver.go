package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsViewer/internal/thetadata"
)

// Lister offers the values the selectors may choose from.
type Lister interface {
	Roots(ctx context.Context) ([]string, error)
	Expirations(ctx context.Context, root string) ([]time.Time, error)
	Strikes(ctx context.Context, root string, exp time.Time) ([]decimal.Decimal, error)
}

// ErrInvalidSelection is wrapped by every SelectionError.
var ErrInvalidSelection = errors.New("invalid selection")

// SelectionError names the selector whose value was not offered.
type SelectionError struct {
	Field string
	Msg   string
}

func (e *SelectionError) Error() string { return e.Field + ": " + e.Msg }

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

func invalid(field, format string, args ...any) error {
	return &SelectionError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Resolver validates selections against the listing calls, so every query
// the pipeline issues names a contract the data source confirmed.
type Resolver struct {
	lister  Lister
	variant Variant
	start   time.Time
	now     func() time.Time
}

func NewResolver(l Lister, v Variant) *Resolver {
	return &Resolver{lister: l, variant: v, start: DefaultStart, now: time.Now}
}

// SetDefaultStart changes the start used when a selection has none.
func (r *Resolver) SetDefaultStart(t time.Time) {
	if !t.IsZero() {
		r.start = NormalizeDate(t)
	}
}

// Roots lists option roots, optionally filtered by prefix, sorted.
func (r *Resolver) Roots(ctx context.Context, prefix string) ([]string, error) {
	roots, err := r.lister.Roots(ctx)
	if err != nil {
		return nil, err
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.HasPrefix(strings.ToUpper(root), prefix) {
			out = append(out, root)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Expirations lists the root's expirations, latest first.
func (r *Resolver) Expirations(ctx context.Context, root string) ([]time.Time, error) {
	exps, err := r.lister.Expirations(ctx, strings.ToUpper(root))
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(exps))
	for i, e := range exps {
		out[i] = NormalizeDate(e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

// Strikes lists the strikes of (root, exp), ascending.
func (r *Resolver) Strikes(ctx context.Context, root string, exp time.Time) ([]decimal.Decimal, error) {
	strikes, err := r.lister.Strikes(ctx, strings.ToUpper(root), NormalizeDate(exp))
	if err != nil {
		return nil, err
	}
	out := append([]decimal.Decimal(nil), strikes...)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// Resolve fills defaults and checks every field against the listings.
// The returned selection has normalized dates and an upper-case root.
func (r *Resolver) Resolve(ctx context.Context, sel Selection) (Selection, error) {
	sel.Root = strings.ToUpper(strings.TrimSpace(sel.Root))
	if sel.Root == "" {
		return sel, invalid("root", "no symbol selected")
	}
	if sel.Expiration.IsZero() {
		return sel, invalid("expiration", "no expiration selected")
	}
	sel.Expiration = NormalizeDate(sel.Expiration)
	sel.Secondary = NormalizeDate(sel.Secondary)

	if !r.variant.RightSelectable || sel.Right == "" {
		sel.Right = thetadata.Call
	}
	if sel.Right != thetadata.Call && sel.Right != thetadata.Put {
		return sel, invalid("right", "unknown right %q", sel.Right)
	}

	if sel.Start.IsZero() {
		sel.Start = r.start
	}
	if sel.End.IsZero() {
		sel.End = r.now()
	}
	sel.Start, sel.End = NormalizeDate(sel.Start), NormalizeDate(sel.End)
	if sel.End.Before(sel.Start) {
		return sel, invalid("range", "end %s is before start %s", FormatExpiration(sel.End), FormatExpiration(sel.Start))
	}

	exps, err := r.Expirations(ctx, sel.Root)
	if err != nil {
		return sel, fmt.Errorf("listing expirations for %s: %w", sel.Root, err)
	}
	if !containsDate(exps, sel.Expiration) {
		return sel, invalid("expiration", "%s has no expiration %s", sel.Root, FormatExpiration(sel.Expiration))
	}
	if sel.HasSecondary() {
		if sel.Secondary.Equal(sel.Expiration) {
			sel.Secondary = time.Time{}
		} else if !containsDate(exps, sel.Secondary) {
			return sel, invalid("secondary", "%s has no expiration %s", sel.Root, FormatExpiration(sel.Secondary))
		}
	}

	if sel.Strike.IsZero() {
		return sel, invalid("strike", "no strike selected")
	}
	strikes, err := r.Strikes(ctx, sel.Root, sel.Expiration)
	if err != nil {
		return sel, fmt.Errorf("listing strikes for %s %s: %w", sel.Root, FormatExpiration(sel.Expiration), err)
	}
	if !containsStrike(strikes, sel.Strike) {
		return sel, invalid("strike", "%s %s has no strike %s", sel.Root, FormatExpiration(sel.Expiration), sel.Strike)
	}
	return sel, nil
}

func containsDate(ds []time.Time, d time.Time) bool {
	for _, x := range ds {
		if x.Equal(d) {
			return true
		}
	}
	return false
}

func containsStrike(ss []decimal.Decimal, s decimal.Decimal) bool {
	for _, x := range ss {
		if x.Equal(s) {
			return true
		}
	}
	return false
}
