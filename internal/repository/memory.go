package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"citypulse/internal/domain"
)

// MemoryStore keeps everything in process memory. It serves the "memory"
// storage type and doubles as the reference for the SQL backends' grouping
// and tie-break rules.
type MemoryStore struct {
	mu           sync.RWMutex
	observations []domain.Observation
	users        map[int64]domain.User
	dashboards   map[int64]domain.Dashboard
	widgets      map[int64]domain.Widget
	nextID       map[string]int64
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	s.Init()
	return s
}

func (s *MemoryStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations = nil
	s.users = make(map[int64]domain.User)
	s.dashboards = make(map[int64]domain.Dashboard)
	s.widgets = make(map[int64]domain.Widget)
	s.nextID = make(map[string]int64)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *MemoryStore) InsertObservation(ctx context.Context, o *domain.Observation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("error inserting observation: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.id("observations")
	o.Timestamp = o.Timestamp.UTC().Truncate(time.Microsecond)
	o.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	s.observations = append(s.observations, *o)
	return nil
}

func (s *MemoryStore) GetObservation(ctx context.Context, id int64) (domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Observation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.observations {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Observation{}, fmt.Errorf("observation %d: %w", id, domain.ErrNotFound)
}

// newestFirst orders by timestamp descending, then id descending.
func newestFirst(a, b domain.Observation) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func (s *MemoryStore) ListObservations(ctx context.Context, q domain.RecentQuery) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("error querying observations: %w", err)
	}
	s.mu.RLock()
	matched := make([]domain.Observation, 0)
	for _, o := range s.observations {
		if o.Timestamp.Before(q.Since) {
			continue
		}
		if q.City != "" && o.City != q.City {
			continue
		}
		if q.MetricType != "" && o.MetricType != q.MetricType {
			continue
		}
		matched = append(matched, o)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return newestFirst(matched[i], matched[j]) })

	if q.Skip >= len(matched) {
		return []domain.Observation{}, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) distinct(ctx context.Context, key func(domain.Observation) string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, o := range s.observations {
		k := key(o)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) DistinctCities(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(o domain.Observation) string { return o.City })
}

func (s *MemoryStore) DistinctMetricTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(o domain.Observation) string { return o.MetricType })
}

type bucketKey struct {
	date string
	unit string
}

type bucket struct {
	sum   float64
	min   float64
	max   float64
	count int
}

func (b *bucket) add(v float64) {
	if b.count == 0 {
		b.min, b.max = v, v
	} else {
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
	b.sum += v
	b.count++
}

func (b *bucket) value(kind domain.AggregationKind) float64 {
	switch kind {
	case domain.AggregationMin:
		return b.min
	case domain.AggregationMax:
		return b.max
	case domain.AggregationSum:
		return b.sum
	default:
		return b.sum / float64(b.count)
	}
}

func (s *MemoryStore) AggregateDaily(ctx context.Context, city, metricType string, since time.Time, kind domain.AggregationKind) ([]domain.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("error aggregating observations: %w", err)
	}
	s.mu.RLock()
	buckets := make(map[bucketKey]*bucket)
	for _, o := range s.observations {
		if o.City != city || o.MetricType != metricType || o.Timestamp.Before(since) {
			continue
		}
		k := bucketKey{date: domain.DateBucket(o.Timestamp), unit: o.Unit}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			buckets[k] = b
		}
		b.add(o.Value)
	}
	s.mu.RUnlock()

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].unit < keys[j].unit
	})

	out := make([]domain.Aggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.Aggregate{
			Date:            k.date,
			Value:           buckets[k].value(kind),
			Unit:            k.unit,
			AggregationType: kind,
		})
	}
	return out, nil
}

type pairKey struct {
	city       string
	metricType string
}

func (s *MemoryStore) LatestPerType(ctx context.Context, city string) ([]domain.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("error querying latest observations: %w", err)
	}
	s.mu.RLock()
	latest := make(map[pairKey]domain.Observation)
	for _, o := range s.observations {
		if city != "" && o.City != city {
			continue
		}
		k := pairKey{o.City, o.MetricType}
		if cur, ok := latest[k]; !ok || newestFirst(o, cur) {
			latest[k] = o
		}
	}
	s.mu.RUnlock()

	out := make([]domain.Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].MetricType < out[j].MetricType
	})
	return out, nil
}

func (s *MemoryStore) CountObservations(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.observations)), ctx.Err()
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("error inserting user %q: %w", u.Username, domain.ErrConflict)
		}
	}
	u.ID = s.id("users")
	u.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, ctx.Err()
}

// page returns the [skip, skip+limit) window of ids in ascending order.
func page(ids []int64, skip, limit int) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if skip >= len(ids) {
		return nil
	}
	ids = ids[skip:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func (s *MemoryStore) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	out := make([]domain.User, 0)
	for _, id := range page(ids, skip, limit) {
		out = append(out, s.users[id])
	}
	return out, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), ctx.Err()
}

func (s *MemoryStore) CreateDashboard(ctx context.Context, d *domain.Dashboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[d.OwnerID]; !ok {
		return fmt.Errorf("owner %d: %w", d.OwnerID, domain.ErrNotFound)
	}
	d.ID = s.id("dashboards")
	d.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	d.UpdatedAt = d.CreatedAt
	stored := *d
	stored.Widgets = nil
	s.dashboards[d.ID] = stored
	return nil
}

func (s *MemoryStore) GetDashboard(ctx context.Context, id int64) (domain.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	if !ok {
		return domain.Dashboard{}, fmt.Errorf("dashboard %d: %w", id, domain.ErrNotFound)
	}
	return d, ctx.Err()
}

func (s *MemoryStore) ListDashboards(ctx context.Context, skip, limit int) ([]domain.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.dashboards))
	for id := range s.dashboards {
		ids = append(ids, id)
	}
	out := make([]domain.Dashboard, 0)
	for _, id := range page(ids, skip, limit) {
		out = append(out, s.dashboards[id])
	}
	return out, nil
}

func (s *MemoryStore) UpdateDashboard(ctx context.Context, d *domain.Dashboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.dashboards[d.ID]
	if !ok {
		return fmt.Errorf("dashboard %d: %w", d.ID, domain.ErrNotFound)
	}
	d.CreatedAt = cur.CreatedAt
	d.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	stored := *d
	stored.Widgets = nil
	s.dashboards[d.ID] = stored
	return nil
}

func (s *MemoryStore) DeleteDashboard(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dashboards[id]; !ok {
		return fmt.Errorf("dashboard %d: %w", id, domain.ErrNotFound)
	}
	delete(s.dashboards, id)
	for wid, w := range s.widgets {
		if w.DashboardID == id {
			delete(s.widgets, wid)
		}
	}
	return nil
}

func (s *MemoryStore) CountDashboards(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dashboards)), ctx.Err()
}

func (s *MemoryStore) CreateWidget(ctx context.Context, w *domain.Widget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dashboards[w.DashboardID]; !ok {
		return fmt.Errorf("dashboard %d: %w", w.DashboardID, domain.ErrNotFound)
	}
	w.ID = s.id("widgets")
	w.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	w.UpdatedAt = w.CreatedAt
	s.widgets[w.ID] = *w
	return nil
}

func (s *MemoryStore) GetWidget(ctx context.Context, id int64) (domain.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[id]
	if !ok {
		return domain.Widget{}, fmt.Errorf("widget %d: %w", id, domain.ErrNotFound)
	}
	return w, ctx.Err()
}

func (s *MemoryStore) ListWidgets(ctx context.Context, dashboardID int64) ([]domain.Widget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0)
	for id, w := range s.widgets {
		if w.DashboardID == dashboardID {
			ids = append(ids, id)
		}
	}
	out := make([]domain.Widget, 0, len(ids))
	for _, id := range page(ids, 0, 0) {
		out = append(out, s.widgets[id])
	}
	return out, nil
}

func (s *MemoryStore) UpdateWidget(ctx context.Context, w *domain.Widget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.widgets[w.ID]
	if !ok {
		return fmt.Errorf("widget %d: %w", w.ID, domain.ErrNotFound)
	}
	w.DashboardID = cur.DashboardID
	w.CreatedAt = cur.CreatedAt
	w.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	s.widgets[w.ID] = *w
	return nil
}

func (s *MemoryStore) DeleteWidget(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.widgets[id]; !ok {
		return fmt.Errorf("widget %d: %w", id, domain.ErrNotFound)
	}
	delete(s.widgets, id)
	return nil
}

func (s *MemoryStore) CountWidgets(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.widgets)), ctx.Err()
}
