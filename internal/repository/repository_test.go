package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypulse/internal/domain"
)

var base = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// backends returns a fresh instance of every store that runs without
// external services.
func backends(t *testing.T) map[string]domain.Store {
	t.Helper()

	sqliteStore := NewSQLiteStore(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, sqliteStore.Init(), "Init should not return an error")
	t.Cleanup(func() { sqliteStore.Close() })

	memStore := NewMemoryStore()
	require.NoError(t, memStore.Init())

	return map[string]domain.Store{
		"sqlite": sqliteStore,
		"memory": memStore,
	}
}

func insert(t *testing.T, s domain.Store, o domain.Observation) domain.Observation {
	t.Helper()
	require.NoError(t, s.InsertObservation(context.Background(), &o))
	return o
}

func TestSQLiteStore_Init(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "init.db"))
	err := store.Init()
	assert.NoError(t, err, "Init should create missing directories and the schema")
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())

	// Init is idempotent on an existing file.
	store = NewSQLiteStore(store.dbPath)
	assert.NoError(t, store.Init())
	store.Close()
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN("file:test.db?cache=shared")
	assert.NoError(t, err)
	assert.Equal(t, "file:test.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", dsn)

	_, err = sqliteDSN("  ")
	assert.Error(t, err)
}

func TestPostgresRebind(t *testing.T) {
	q := postgresDialect{}.rebind("SELECT 1 FROM t WHERE a = ? AND b = ? LIMIT ?")
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b = $2 LIMIT $3", q)
}

func TestStore_InsertAndGetObservation(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stored := insert(t, s, domain.Observation{
				City: "San Francisco", MetricType: "air_quality", Value: 45, Unit: "AQI",
				Timestamp: base, Source: "City Sensors Network",
				Attributes: map[string]any{"area": "Downtown", "reliability": 0.93},
			})
			assert.NotZero(t, stored.ID)

			got, err := s.GetObservation(ctx, stored.ID)
			assert.NoError(t, err)
			assert.Equal(t, "San Francisco", got.City)
			assert.Equal(t, 45.0, got.Value)
			assert.Equal(t, "AQI", got.Unit)
			assert.True(t, base.Equal(got.Timestamp))
			assert.Equal(t, "Downtown", got.Attributes["area"])
			assert.Equal(t, 0.93, got.Attributes["reliability"])

			noUnit := insert(t, s, domain.Observation{City: "Seattle", MetricType: "population", Value: 1, Timestamp: base})
			got, err = s.GetObservation(ctx, noUnit.ID)
			assert.NoError(t, err)
			assert.Empty(t, got.Unit)
			assert.Nil(t, got.Attributes)

			_, err = s.GetObservation(ctx, 9999)
			assert.True(t, errors.Is(err, domain.ErrNotFound), "missing id should be ErrNotFound, got %v", err)

			n, err := s.CountObservations(ctx)
			assert.NoError(t, err)
			assert.EqualValues(t, 2, n)
		})
	}
}

func TestStore_ListObservations(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			old := insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 1, Timestamp: base.Add(-10 * 24 * time.Hour)})
			a := insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 2, Timestamp: base.Add(-2 * time.Hour)})
			b := insert(t, s, domain.Observation{City: "SF", MetricType: "traffic_flow", Value: 3, Timestamp: base.Add(-1 * time.Hour)})
			// c and d share a timestamp; d has the higher id and sorts first.
			c := insert(t, s, domain.Observation{City: "NY", MetricType: "air_quality", Value: 4, Timestamp: base})
			d := insert(t, s, domain.Observation{City: "NY", MetricType: "air_quality", Value: 5, Timestamp: base})

			since := base.Add(-7 * 24 * time.Hour)

			// case 1: window filter and ordering
			got, err := s.ListObservations(ctx, domain.RecentQuery{Since: since, Limit: 100})
			assert.NoError(t, err)
			assert.Equal(t, []int64{d.ID, c.ID, b.ID, a.ID}, ids(got))

			// case 2: widening the window keeps every earlier row
			wider, err := s.ListObservations(ctx, domain.RecentQuery{Since: since.Add(-7 * 24 * time.Hour), Limit: 100})
			assert.NoError(t, err)
			assert.Equal(t, []int64{d.ID, c.ID, b.ID, a.ID, old.ID}, ids(wider))

			// case 3: equality filters
			got, err = s.ListObservations(ctx, domain.RecentQuery{City: "SF", MetricType: "air_quality", Since: since, Limit: 100})
			assert.NoError(t, err)
			assert.Equal(t, []int64{a.ID}, ids(got))

			// case 4: pagination
			got, err = s.ListObservations(ctx, domain.RecentQuery{Since: since, Skip: 1, Limit: 2})
			assert.NoError(t, err)
			assert.Equal(t, []int64{c.ID, b.ID}, ids(got))

			// case 5: skip beyond the data is an empty result
			got, err = s.ListObservations(ctx, domain.RecentQuery{Since: since, Skip: 10, Limit: 2})
			assert.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, 0)

			// case 6: repeated calls return identical pages
			first, _ := s.ListObservations(ctx, domain.RecentQuery{Since: since, Limit: 3})
			second, _ := s.ListObservations(ctx, domain.RecentQuery{Since: since, Limit: 3})
			assert.Equal(t, first, second)

			// case 7: context cancellation
			cctx, cancel := context.WithCancel(context.Background())
			cancel()
			got, err = s.ListObservations(cctx, domain.RecentQuery{Since: since, Limit: 100})
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "context canceled")
			assert.Len(t, got, 0)
		})
	}
}

func ids(obs []domain.Observation) []int64 {
	out := make([]int64, len(obs))
	for i, o := range obs {
		out[i] = o.ID
	}
	return out
}

func TestStore_Distinct(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cities, err := s.DistinctCities(ctx)
			assert.NoError(t, err)
			assert.Empty(t, cities)

			insert(t, s, domain.Observation{City: "Seattle", MetricType: "temperature", Value: 1, Timestamp: base})
			insert(t, s, domain.Observation{City: "Chicago", MetricType: "air_quality", Value: 1, Timestamp: base})
			insert(t, s, domain.Observation{City: "Seattle", MetricType: "air_quality", Value: 1, Timestamp: base})

			cities, err = s.DistinctCities(ctx)
			assert.NoError(t, err)
			assert.Equal(t, []string{"Chicago", "Seattle"}, cities)

			types, err := s.DistinctMetricTypes(ctx)
			assert.NoError(t, err)
			assert.Equal(t, []string{"air_quality", "temperature"}, types)
		})
	}
}

func TestStore_AggregateDaily(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			day1 := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
			day2 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 10, Unit: "AQI", Timestamp: day1})
			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 20, Unit: "AQI", Timestamp: day1.Add(3 * time.Hour)})
			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 55, Unit: "AQI", Timestamp: day2})
			// Other pair and out-of-window rows must not leak in.
			insert(t, s, domain.Observation{City: "NY", MetricType: "air_quality", Value: 1000, Unit: "AQI", Timestamp: day2})
			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 1000, Unit: "AQI", Timestamp: day1.Add(-30 * 24 * time.Hour)})

			since := day1.Add(-24 * time.Hour)
			cases := []struct {
				kind domain.AggregationKind
				want []float64
			}{
				{domain.AggregationAvg, []float64{15, 55}},
				{domain.AggregationMin, []float64{10, 55}},
				{domain.AggregationMax, []float64{20, 55}},
				{domain.AggregationSum, []float64{30, 55}},
			}
			for _, tc := range cases {
				got, err := s.AggregateDaily(ctx, "SF", "air_quality", since, tc.kind)
				assert.NoError(t, err)
				if assert.Len(t, got, 2, "kind %s", tc.kind) {
					assert.Equal(t, "2024-03-09", got[0].Date)
					assert.Equal(t, "2024-03-10", got[1].Date)
					assert.InDelta(t, tc.want[0], got[0].Value, 1e-9, "kind %s", tc.kind)
					assert.InDelta(t, tc.want[1], got[1].Value, 1e-9, "kind %s", tc.kind)
					assert.Equal(t, "AQI", got[0].Unit)
					assert.Equal(t, tc.kind, got[0].AggregationType)
				}
			}

			got, err := s.AggregateDaily(ctx, "Nowhere", "air_quality", since, domain.AggregationAvg)
			assert.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_AggregateDailyMixedUnits(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			day := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)

			insert(t, s, domain.Observation{City: "SF", MetricType: "temperature", Value: 20, Unit: "celsius", Timestamp: day})
			insert(t, s, domain.Observation{City: "SF", MetricType: "temperature", Value: 70, Unit: "fahrenheit", Timestamp: day})
			insert(t, s, domain.Observation{City: "SF", MetricType: "temperature", Value: 5, Timestamp: day})

			got, err := s.AggregateDaily(ctx, "SF", "temperature", day.Add(-time.Hour), domain.AggregationAvg)
			assert.NoError(t, err)
			assert.Equal(t, []domain.Aggregate{
				{Date: "2024-03-09", Value: 5, Unit: "", AggregationType: domain.AggregationAvg},
				{Date: "2024-03-09", Value: 20, Unit: "celsius", AggregationType: domain.AggregationAvg},
				{Date: "2024-03-09", Value: 70, Unit: "fahrenheit", AggregationType: domain.AggregationAvg},
			}, got)
		})
	}
}

func TestStore_AggregateDailyBucketsInUTC(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			// Same local evening in UTC-8, two different UTC days.
			pst := time.FixedZone("PST", -8*60*60)
			insert(t, s, domain.Observation{City: "SF", MetricType: "traffic_flow", Value: 1, Timestamp: time.Date(2024, 3, 9, 15, 0, 0, 0, pst)})
			insert(t, s, domain.Observation{City: "SF", MetricType: "traffic_flow", Value: 2, Timestamp: time.Date(2024, 3, 9, 17, 0, 0, 0, pst)})

			got, err := s.AggregateDaily(ctx, "SF", "traffic_flow", base.Add(-7*24*time.Hour), domain.AggregationSum)
			assert.NoError(t, err)
			if assert.Len(t, got, 2) {
				assert.Equal(t, "2024-03-09", got[0].Date)
				assert.Equal(t, "2024-03-10", got[1].Date)
			}
		})
	}
}

func TestStore_LatestPerType(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 1, Timestamp: base.Add(-2 * time.Hour)})
			t3 := insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 3, Timestamp: base})
			insert(t, s, domain.Observation{City: "SF", MetricType: "air_quality", Value: 2, Timestamp: base.Add(-time.Hour)})

			// Tie on the max timestamp: the higher id wins.
			insert(t, s, domain.Observation{City: "SF", MetricType: "temperature", Value: 10, Timestamp: base})
			tie := insert(t, s, domain.Observation{City: "SF", MetricType: "temperature", Value: 11, Timestamp: base})

			ny := insert(t, s, domain.Observation{City: "NY", MetricType: "air_quality", Value: 7, Timestamp: base.Add(-48 * time.Hour)})

			got, err := s.LatestPerType(ctx, "SF")
			assert.NoError(t, err)
			assert.Equal(t, []int64{t3.ID, tie.ID}, ids(got))

			got, err = s.LatestPerType(ctx, "")
			assert.NoError(t, err)
			assert.Equal(t, []int64{ny.ID, t3.ID, tie.ID}, ids(got))

			got, err = s.LatestPerType(ctx, "Atlantis")
			assert.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStore_Dashboards(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			user := domain.User{Username: "testuser", Email: "test@citypulse.com", PasswordHash: "x", IsActive: true}
			require.NoError(t, s.CreateUser(ctx, &user))
			assert.NotZero(t, user.ID)

			gotUser, err := s.GetUser(ctx, user.ID)
			assert.NoError(t, err)
			assert.True(t, gotUser.IsActive)
			assert.Equal(t, "x", gotUser.PasswordHash)

			dup := domain.User{Username: "testuser", Email: "other@citypulse.com", PasswordHash: "x"}
			assert.ErrorIs(t, s.CreateUser(ctx, &dup), domain.ErrConflict, "usernames are unique")

			dash := domain.Dashboard{Title: "City Overview", OwnerID: user.ID, IsPublic: true, LayoutConfig: map[string]any{"columns": 12.0}}
			require.NoError(t, s.CreateDashboard(ctx, &dash))

			w1 := domain.Widget{DashboardID: dash.ID, WidgetType: "stat", Title: "Population", Position: map[string]any{"x": 0.0}, RefreshInterval: 3600}
			w2 := domain.Widget{DashboardID: dash.ID, WidgetType: "chart", Title: "Air Quality", DataSource: "/api/v1/metrics/latest?city=SF"}
			require.NoError(t, s.CreateWidget(ctx, &w1))
			require.NoError(t, s.CreateWidget(ctx, &w2))

			gotDash, err := s.GetDashboard(ctx, dash.ID)
			assert.NoError(t, err)
			assert.Equal(t, "City Overview", gotDash.Title)
			assert.True(t, gotDash.IsPublic)
			assert.Equal(t, 12.0, gotDash.LayoutConfig["columns"])

			widgets, err := s.ListWidgets(ctx, dash.ID)
			assert.NoError(t, err)
			if assert.Len(t, widgets, 2) {
				assert.Equal(t, w1.ID, widgets[0].ID)
				assert.Equal(t, 3600, widgets[0].RefreshInterval)
				assert.Equal(t, "/api/v1/metrics/latest?city=SF", widgets[1].DataSource)
			}

			gotDash.Title = "Renamed"
			assert.NoError(t, s.UpdateDashboard(ctx, &gotDash))
			gotDash, _ = s.GetDashboard(ctx, dash.ID)
			assert.Equal(t, "Renamed", gotDash.Title)

			w1.Title = "People"
			assert.NoError(t, s.UpdateWidget(ctx, &w1))
			gotWidget, err := s.GetWidget(ctx, w1.ID)
			assert.NoError(t, err)
			assert.Equal(t, "People", gotWidget.Title)

			list, err := s.ListDashboards(ctx, 0, 10)
			assert.NoError(t, err)
			assert.Len(t, list, 1)
			list, err = s.ListDashboards(ctx, 1, 10)
			assert.NoError(t, err)
			assert.Len(t, list, 0)

			assert.NoError(t, s.DeleteWidget(ctx, w2.ID))
			assert.True(t, errors.Is(s.DeleteWidget(ctx, w2.ID), domain.ErrNotFound))

			// Deleting the dashboard takes its widgets with it.
			assert.NoError(t, s.DeleteDashboard(ctx, dash.ID))
			_, err = s.GetDashboard(ctx, dash.ID)
			assert.True(t, errors.Is(err, domain.ErrNotFound))
			_, err = s.GetWidget(ctx, w1.ID)
			assert.True(t, errors.Is(err, domain.ErrNotFound))
			n, err := s.CountWidgets(ctx)
			assert.NoError(t, err)
			assert.Zero(t, n)

			assert.True(t, errors.Is(s.DeleteDashboard(ctx, dash.ID), domain.ErrNotFound))
			missing := domain.Dashboard{ID: 424242, Title: "x"}
			assert.True(t, errors.Is(s.UpdateDashboard(ctx, &missing), domain.ErrNotFound))
		})
	}
}
