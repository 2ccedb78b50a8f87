// Package report builds monthly cost reports grouped by category and
// memoizes them once their month is closed.
//
// A report for a past month is computed at most once per key and then
// served from the report store forever; there is no invalidation path.
// Reports for the current or a future month are recomputed on every
// request and never persisted.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"costmanager/internal/cache"
	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/store"

	"golang.org/x/sync/singleflight"
)

// Source tells where a returned report came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceComputed Source = "computed"
)

// Result is the outcome of one GetMonthlyReport call.
type Result struct {
	Report core.MonthlyReport
	Source Source
	// Persisted is true when this call wrote the report to the store.
	Persisted bool
	// Dropped counts records skipped for an unknown category.
	Dropped int
}

// Observer receives a notification for every served report. It is called
// in its own goroutine; it cannot affect the result.
type Observer interface {
	ReportServed(ctx context.Context, res Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res Result)

func (f ObserverFunc) ReportServed(ctx context.Context, res Result) { f(ctx, res) }

// Engine computes and caches monthly reports.
type Engine struct {
	costs    store.CostReader
	reports  store.ReportStore
	hits     cache.Cache[core.ReportKey, core.MonthlyReport]
	observer Observer
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location
	flights  singleflight.Group
}

type Option func(*Engine)

// WithClock sets the reference clock used for the past-month decision.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the calendar used for month boundaries and days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// WithHitCache fronts the report store with an in-process cache of
// persisted reports, usually a cache.LRU.
func WithHitCache(c cache.Cache[core.ReportKey, core.MonthlyReport]) Option {
	return func(e *Engine) { e.hits = c }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(costs store.CostReader, reports store.ReportStore, opts ...Option) *Engine {
	e := &Engine{
		costs:   costs,
		reports: reports,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Discard()
	}
	e.logger = e.logger.WithComponent(log.ComponentReport)
	return e
}

// Location returns the calendar the engine computes months in.
func (e *Engine) Location() *time.Location { return e.loc }

// GetMonthlyReport returns the user's costs for year/month grouped into the
// five category buckets.
func (e *Engine) GetMonthlyReport(ctx context.Context, userID int64, year, month int) (Result, error) {
	key := core.ReportKey{UserID: userID, Year: year, Month: month}
	if err := key.Validate(); err != nil {
		return Result{}, err
	}

	if r, ok := e.lookupHit(key); ok {
		return e.served(ctx, Result{Report: r, Source: SourceCache}), nil
	}

	// Concurrent misses for one key share a single lookup and computation.
	// The shared work runs detached from any one caller's cancellation.
	v, err, shared := e.flights.Do(key.String(), func() (any, error) {
		return e.load(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return Result{}, err
	}
	res := v.(Result)
	if shared {
		res.Report.Costs = res.Report.Costs.Clone()
	}
	return e.served(ctx, res), nil
}

func (e *Engine) load(ctx context.Context, key core.ReportKey) (Result, error) {
	cached, err := e.reports.FindReport(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("%w: find cached report %s: %w", core.ErrInternal, key, err)
	}
	if cached != nil {
		cached.Costs = cached.Costs.Clone()
		e.rememberHit(*cached)
		return Result{Report: *cached, Source: SourceCache}, nil
	}

	res, err := e.compute(ctx, key)
	if err != nil {
		return Result{}, err
	}

	if !core.IsPastMonth(key.Year, key.Month, e.now().In(e.loc)) {
		return res, nil
	}

	switch err := e.reports.InsertReport(ctx, res.Report); {
	case err == nil:
		res.Persisted = true
		e.rememberHit(res.Report)
	case errors.Is(err, core.ErrConflict):
		// Another process persisted the same key first; both groupings
		// come from the same closed month.
		e.logger.DebugContext(ctx, "Report already persisted",
			log.NewFields().WithReportKey(key.UserID, key.Year, key.Month).ToSlice()...)
	default:
		return Result{}, fmt.Errorf("%w: persist report %s: %w", core.ErrInternal, key, err)
	}
	return res, nil
}

func (e *Engine) compute(ctx context.Context, key core.ReportKey) (Result, error) {
	from, to := core.MonthRange(key.Year, key.Month, e.loc)
	costs, err := e.costs.FindCosts(ctx, key.UserID, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("%w: find costs %s: %w", core.ErrInternal, key, err)
	}

	grouped := core.NewGroupedCosts()
	dropped := 0
	for _, c := range costs {
		if !grouped.Add(c, e.loc) {
			dropped++
		}
	}
	if dropped > 0 {
		e.logger.WarnContext(ctx, "Skipped costs with unknown category",
			append(log.NewFields().WithReportKey(key.UserID, key.Year, key.Month).ToSlice(), "skipped", dropped)...)
	}

	return Result{
		Report: core.MonthlyReport{
			UserID: key.UserID,
			Year:   key.Year,
			Month:  key.Month,
			Costs:  grouped,
		},
		Source:  SourceComputed,
		Dropped: dropped,
	}, nil
}

func (e *Engine) lookupHit(key core.ReportKey) (core.MonthlyReport, bool) {
	if e.hits == nil {
		return core.MonthlyReport{}, false
	}
	r, ok := e.hits.Get(key)
	if !ok {
		return core.MonthlyReport{}, false
	}
	r.Costs = r.Costs.Clone()
	return r, true
}

func (e *Engine) rememberHit(r core.MonthlyReport) {
	if e.hits == nil {
		return
	}
	r.Costs = r.Costs.Clone()
	e.hits.Set(r.Key(), r)
}

func (e *Engine) served(ctx context.Context, res Result) Result {
	key := res.Report.Key()
	e.logger.InfoContext(ctx, "Monthly report served",
		append(log.NewFields().WithReportKey(key.UserID, key.Year, key.Month).ToSlice(),
			log.FieldSource, string(res.Source),
			log.FieldPersisted, res.Persisted,
			log.FieldItems, res.Report.Costs.Len())...)

	if e.observer != nil {
		obs := e.observer
		snapshot := res
		snapshot.Report.Costs = res.Report.Costs.Clone()
		go func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("Report observer panicked", "panic", fmt.Sprint(p))
				}
			}()
			obs.ReportServed(context.WithoutCancel(ctx), snapshot)
		}()
	}
	return res
}
