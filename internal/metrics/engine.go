// Package metrics answers the city metrics queries: recent observations,
// distinct cities and types, daily aggregates and latest value per type.
//
// The engine owns every input rule (defaults, bounds, finite values) and
// rejects bad input before the store is touched. Stores only filter, group
// and order.
package metrics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"citypulse/internal/domain"
)

const (
	DefaultWindowDays = 7
	DefaultLimit      = 100
	DefaultMaxLimit   = 1000

	// MaxWindowDays bounds the look-back. Longer windows are clamped to it,
	// so a larger window still covers every row a shorter one does.
	MaxWindowDays = 36500
)

const day = 24 * time.Hour

type Engine struct {
	store    domain.MetricStore
	now      func() time.Time
	maxLimit int
}

type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxLimit caps the page size of ListRecent. Values <= 0 are ignored.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxLimit = n
		}
	}
}

func NewEngine(store domain.MetricStore, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now, maxLimit: DefaultMaxLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RecentParams mirrors the query string of GET /metrics. Nil pointers take
// the defaults: 7 days, skip 0, limit 100.
type RecentParams struct {
	City       string
	MetricType string
	WindowDays *int
	Skip       *int
	Limit      *int
}

// since returns now minus the window, truncated to the store's precision.
func (e *Engine) since(windowDays int) time.Time {
	if windowDays > MaxWindowDays {
		windowDays = MaxWindowDays
	}
	return e.now().UTC().Add(-time.Duration(windowDays) * day).Truncate(time.Microsecond)
}

func (e *Engine) ListRecent(ctx context.Context, p RecentParams) ([]domain.Observation, error) {
	window, skip, limit := DefaultWindowDays, 0, DefaultLimit
	if p.WindowDays != nil {
		window = *p.WindowDays
	}
	if p.Skip != nil {
		skip = *p.Skip
	}
	if p.Limit != nil {
		limit = *p.Limit
	}

	if window < 0 {
		return nil, fmt.Errorf("%w: days must be >= 0, got %d", domain.ErrInvalidWindow, window)
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip %d", domain.ErrInvalidPagination, skip)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", domain.ErrInvalidPagination, limit)
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	return e.store.ListObservations(ctx, domain.RecentQuery{
		City:       p.City,
		MetricType: p.MetricType,
		Since:      e.since(window),
		Skip:       skip,
		Limit:      limit,
	})
}

func (e *Engine) ListCities(ctx context.Context) ([]string, error) {
	return e.store.DistinctCities(ctx)
}

func (e *Engine) ListMetricTypes(ctx context.Context) ([]string, error) {
	return e.store.DistinctMetricTypes(ctx)
}

// Aggregate buckets one (city, metric type) series by UTC date over the last
// windowDays days. A bucket holding several units yields one row per unit.
func (e *Engine) Aggregate(ctx context.Context, city, metricType string, windowDays int, aggregation string) ([]domain.Aggregate, error) {
	kind, err := domain.ParseAggregationKind(aggregation)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(city) == "" {
		return nil, fmt.Errorf("%w: city", domain.ErrEmptyField)
	}
	if strings.TrimSpace(metricType) == "" {
		return nil, fmt.Errorf("%w: metric_type", domain.ErrEmptyField)
	}
	if windowDays < 1 {
		return nil, fmt.Errorf("%w: days must be >= 1, got %d", domain.ErrInvalidWindow, windowDays)
	}

	return e.store.AggregateDaily(ctx, city, metricType, e.since(windowDays), kind)
}

// LatestPerType returns the newest observation of every (city, metric type)
// pair, optionally for one city only.
func (e *Engine) LatestPerType(ctx context.Context, city string) ([]domain.Observation, error) {
	return e.store.LatestPerType(ctx, city)
}

func (e *Engine) Get(ctx context.Context, id int64) (domain.Observation, error) {
	return e.store.GetObservation(ctx, id)
}

// Record validates and inserts one observation. A zero Timestamp means now.
func (e *Engine) Record(ctx context.Context, o domain.Observation) (domain.Observation, error) {
	o.City = strings.TrimSpace(o.City)
	o.MetricType = strings.TrimSpace(o.MetricType)

	if o.City == "" {
		return domain.Observation{}, fmt.Errorf("%w: city", domain.ErrEmptyField)
	}
	if o.MetricType == "" {
		return domain.Observation{}, fmt.Errorf("%w: metric_type", domain.ErrEmptyField)
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return domain.Observation{}, fmt.Errorf("%w: %v", domain.ErrNonFiniteValue, o.Value)
	}
	if o.Attributes != nil {
		if _, err := json.Marshal(o.Attributes); err != nil {
			return domain.Observation{}, fmt.Errorf("%w: %v", domain.ErrInvalidAttributes, err)
		}
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = e.now()
	}
	o.Timestamp = o.Timestamp.UTC()
	o.ID = 0

	if err := e.store.InsertObservation(ctx, &o); err != nil {
		return domain.Observation{}, err
	}
	return o, nil
}
