//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"citypulse/internal/domain"
)

func startPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "citypulse",
				"POSTGRES_PASSWORD": "citypulse",
				"POSTGRES_DB":       "citypulse",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://citypulse:citypulse@%s:%s/citypulse?sslmode=disable", host, port.Port())
	store := NewPostgresStore(dsn)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStore_MatchesMemoryStore(t *testing.T) {
	pg := startPostgres(t)
	mem := NewMemoryStore()
	ctx := context.Background()

	day1 := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	seed := []domain.Observation{
		{City: "SF", MetricType: "air_quality", Value: 45, Unit: "AQI", Timestamp: day1},
		{City: "SF", MetricType: "air_quality", Value: 55, Unit: "AQI", Timestamp: day1.Add(time.Hour)},
		{City: "SF", MetricType: "air_quality", Value: 65, Unit: "AQI", Timestamp: day1.Add(time.Hour)},
		{City: "SF", MetricType: "temperature", Value: 20, Unit: "celsius", Timestamp: day1},
		{City: "SF", MetricType: "temperature", Value: 70, Unit: "fahrenheit", Timestamp: day1},
		{City: "NY", MetricType: "air_quality", Value: 30, Timestamp: day1},
	}
	for _, o := range seed {
		a, b := o, o
		require.NoError(t, pg.InsertObservation(ctx, &a))
		require.NoError(t, mem.InsertObservation(ctx, &b))
	}

	since := day1.Add(-24 * time.Hour)
	for _, kind := range []domain.AggregationKind{domain.AggregationAvg, domain.AggregationMin, domain.AggregationMax, domain.AggregationSum} {
		want, err := mem.AggregateDaily(ctx, "SF", "air_quality", since, kind)
		require.NoError(t, err)
		got, err := pg.AggregateDaily(ctx, "SF", "air_quality", since, kind)
		require.NoError(t, err)
		assert.Equal(t, want, got, "kind %s", kind)
	}

	wantMixed, _ := mem.AggregateDaily(ctx, "SF", "temperature", since, domain.AggregationAvg)
	gotMixed, err := pg.AggregateDaily(ctx, "SF", "temperature", since, domain.AggregationAvg)
	require.NoError(t, err)
	assert.Equal(t, wantMixed, gotMixed)

	wantLatest, _ := mem.LatestPerType(ctx, "")
	gotLatest, err := pg.LatestPerType(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ids(wantLatest), ids(gotLatest))

	wantRecent, _ := mem.ListObservations(ctx, domain.RecentQuery{Since: since, Limit: 3, Skip: 1})
	gotRecent, err := pg.ListObservations(ctx, domain.RecentQuery{Since: since, Limit: 3, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, ids(wantRecent), ids(gotRecent))

	cities, err := pg.DistinctCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"NY", "SF"}, cities)
}

func TestPostgresStore_Dashboards(t *testing.T) {
	pg := startPostgres(t)
	ctx := context.Background()

	// case 1: duplicate username or email is a conflict
	owner := domain.User{Username: "testuser", Email: "test@citypulse.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, pg.CreateUser(ctx, &owner))
	assert.NotZero(t, owner.ID)

	dup := domain.User{Username: "testuser", Email: "other@citypulse.com", PasswordHash: "x"}
	assert.ErrorIs(t, pg.CreateUser(ctx, &dup), domain.ErrConflict)
	dup = domain.User{Username: "other", Email: "test@citypulse.com", PasswordHash: "x"}
	assert.ErrorIs(t, pg.CreateUser(ctx, &dup), domain.ErrConflict)

	got, err := pg.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	// case 2: dashboard round trip with a JSON layout
	d := domain.Dashboard{Title: "City Overview", OwnerID: owner.ID, IsPublic: true, LayoutConfig: map[string]any{"columns": float64(3)}}
	require.NoError(t, pg.CreateDashboard(ctx, &d))
	loaded, err := pg.GetDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "City Overview", loaded.Title)
	assert.True(t, loaded.IsPublic)
	assert.Equal(t, map[string]any{"columns": float64(3)}, loaded.LayoutConfig)

	loaded.Title = "Renamed"
	require.NoError(t, pg.UpdateDashboard(ctx, &loaded))
	loaded, err = pg.GetDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Title)

	// case 3: deleting a dashboard deletes its widgets
	w := domain.Widget{DashboardID: d.ID, WidgetType: "chart", Title: "Population"}
	require.NoError(t, pg.CreateWidget(ctx, &w))
	widgets, err := pg.ListWidgets(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, widgets, 1)

	require.NoError(t, pg.DeleteDashboard(ctx, d.ID))
	_, err = pg.GetDashboard(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = pg.GetWidget(ctx, w.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	n, err := pg.CountWidgets(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, pg.DeleteDashboard(ctx, d.ID), domain.ErrNotFound)
}
