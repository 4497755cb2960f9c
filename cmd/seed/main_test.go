package main

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"citypulse/internal/dashboards"
	"citypulse/internal/metrics"
	"citypulse/internal/repository"
	"citypulse/internal/util"
)

func TestSeedObservations(t *testing.T) {
	store := repository.NewMemoryStore()
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	engine := metrics.NewEngine(store, metrics.WithClock(func() time.Time { return end }))
	ctx := context.Background()

	n, err := seedObservations(ctx, engine, rand.New(rand.NewSource(1)), end, 3, &util.ServiceLogger{})
	require.NoError(t, err)
	assert.Equal(t, 3*len(cities)*len(metricSpecs), n)

	gotCities, err := engine.ListCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chicago", "Los Angeles", "New York", "San Francisco", "Seattle"}, gotCities)

	latest, err := engine.LatestPerType(ctx, "Seattle")
	require.NoError(t, err)
	assert.Len(t, latest, len(metricSpecs))
	for _, o := range latest {
		assert.Equal(t, end.AddDate(0, 0, -1), o.Timestamp)
		assert.Equal(t, sensorSource, o.Source)
		assert.Contains(t, o.Attributes, "sensor_id")
		if o.MetricType == "air_quality" {
			assert.GreaterOrEqual(t, o.Value, 20.0)
			assert.LessOrEqual(t, o.Value, 150.0)
		}
	}

	buckets, err := engine.Aggregate(ctx, "Chicago", "temperature", 7, "max")
	require.NoError(t, err)
	assert.Len(t, buckets, 3)

	_, err = seedObservations(ctx, engine, rand.New(rand.NewSource(1)), end, 0, &util.ServiceLogger{})
	assert.Error(t, err)
}

func TestSeedDashboards(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := dashboards.NewService(store, dashboards.NewBcryptHasher(bcrypt.MinCost))
	ctx := context.Background()

	require.NoError(t, seedDashboards(ctx, svc, &util.ServiceLogger{}))
	require.NoError(t, seedDashboards(ctx, svc, &util.ServiceLogger{}), "second run is a no-op")

	users, _ := store.CountUsers(ctx)
	dashCount, _ := store.CountDashboards(ctx)
	widgets, _ := store.CountWidgets(ctx)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(len(demoDashboards)), dashCount)
	assert.Equal(t, int64(len(demoWidgets)), widgets)

	first, err := svc.GetDashboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, first.Widgets, len(demoWidgets))
}

// brokenCountStore fails CountObservations after every write succeeded.
type brokenCountStore struct {
	*repository.MemoryStore
}

func (brokenCountStore) CountObservations(context.Context) (int64, error) {
	return 0, errors.New("disk I/O error")
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1))

	// case 1: success
	store := repository.NewMemoryStore()
	require.NoError(t, run(ctx, store, rng, end, 1, &util.ServiceLogger{}))
	n, err := store.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(cities)*len(metricSpecs)), n)

	// case 2: a bad day count is reported, not swallowed
	err = run(ctx, repository.NewMemoryStore(), rng, end, 0, &util.ServiceLogger{})
	assert.Error(t, err)

	// case 3: the final count error is returned
	err = run(ctx, brokenCountStore{repository.NewMemoryStore()}, rng, end, 1, &util.ServiceLogger{})
	assert.ErrorContains(t, err, "disk I/O error")
}
