// Command seed fills a store with a demo user, dashboards with widgets and
// a month of synthetic observations for five cities.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"citypulse/internal/config"
	"citypulse/internal/dashboards"
	"citypulse/internal/domain"
	"citypulse/internal/metrics"
	"citypulse/internal/repository"
	"citypulse/internal/util"
)

const sensorSource = "City Sensors Network"

var cities = []string{"San Francisco", "New York", "Los Angeles", "Chicago", "Seattle"}

type metricSpec struct {
	metricType string
	unit       string
	value      func(r *rand.Rand) float64
}

func uniform(min, max float64, decimals int) func(r *rand.Rand) float64 {
	scale := math.Pow(10, float64(decimals))
	return func(r *rand.Rand) float64 {
		return math.Round((min+r.Float64()*(max-min))*scale) / scale
	}
}

func intRange(min, max int) func(r *rand.Rand) float64 {
	return func(r *rand.Rand) float64 {
		return float64(min + r.Intn(max-min+1))
	}
}

var metricSpecs = []metricSpec{
	{"temperature", "celsius", uniform(15, 30, 1)},
	{"air_quality", "AQI", intRange(20, 150)},
	{"traffic_flow", "vehicles/hour", intRange(100, 5000)},
	{"crime_incidents", "count", intRange(0, 50)},
	{"public_transport_usage", "passengers", intRange(1000, 50000)},
	{"energy_consumption", "MWh", uniform(100, 500, 2)},
	{"water_usage", "gallons", intRange(10000, 100000)},
	{"waste_collection", "tons", uniform(50, 200, 1)},
	{"population", "people", intRange(800000, 900000)},
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	days := flag.Int("days", 30, "number of days of observations to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error while loading the config..", err)
		os.Exit(1)
	}

	logger := &util.ServiceLogger{}
	if err := logger.Init(config.LogConfig{Level: cfg.Log.Level, Stdout: true}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	store, err := repository.New(cfg.Storage)
	if err == nil {
		err = store.Init()
	}
	if err != nil {
		logger.Error("Failed to initialize store for seeding", zap.Error(err))
		logger.DeInit()
		os.Exit(1)
	}

	err = run(context.Background(), store, rand.New(rand.NewSource(*seed)), time.Now().UTC(), *days, logger)
	store.Close()
	if err != nil {
		logger.Error("Seeding failed", zap.Error(err))
		logger.DeInit()
		os.Exit(1)
	}
	logger.DeInit()
}

// run seeds the demo dashboards and then days of observations ending at end.
func run(ctx context.Context, store domain.Store, rng *rand.Rand, end time.Time, days int, logger *util.ServiceLogger) error {
	if err := seedDashboards(ctx, dashboards.NewService(store, nil), logger); err != nil {
		return fmt.Errorf("seeding dashboards: %w", err)
	}

	n, err := seedObservations(ctx, metrics.NewEngine(store), rng, end, days, logger)
	if err != nil {
		return fmt.Errorf("seeding observations after %d inserts: %w", n, err)
	}
	total, err := store.CountObservations(ctx)
	if err != nil {
		return fmt.Errorf("counting observations: %w", err)
	}
	logger.Info("Data seeding complete.", zap.Int("inserted", n), zap.Int64("total", total))
	return nil
}

// seedObservations writes one observation per city, metric type and day,
// the newest one day before end.
func seedObservations(ctx context.Context, engine *metrics.Engine, rng *rand.Rand, end time.Time, days int, logger *util.ServiceLogger) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be positive, got %d", days)
	}
	start := end.AddDate(0, 0, -days)
	logger.Info("Seeding observations",
		zap.Time("from", start), zap.Time("to", end),
		zap.Int("cities", len(cities)), zap.Int("metric_types", len(metricSpecs)))

	inserted := 0
	for day := 0; day < days; day++ {
		ts := start.AddDate(0, 0, day)
		for _, city := range cities {
			for _, spec := range metricSpecs {
				area := "Suburbs"
				if rng.Float64() > 0.5 {
					area = "Downtown"
				}
				_, err := engine.Record(ctx, domain.Observation{
					City:       city,
					MetricType: spec.metricType,
					Value:      spec.value(rng),
					Unit:       spec.unit,
					Timestamp:  ts,
					Source:     sensorSource,
					Attributes: map[string]any{
						"area":        area,
						"reliability": math.Round((0.8+rng.Float64()*0.2)*100) / 100,
						"sensor_id":   fmt.Sprintf("SENSOR-%d", 1000+rng.Intn(9000)),
					},
				})
				if err != nil {
					return inserted, err
				}
				inserted++
			}
		}
	}
	return inserted, nil
}

var demoDashboards = []domain.Dashboard{
	{
		Title:        "City Overview Dashboard",
		Description:  "Main dashboard showing city metrics overview",
		IsPublic:     true,
		LayoutConfig: map[string]any{"columns": 3, "rows": 2},
	},
	{
		Title:        "Traffic Analytics",
		Description:  "Real-time traffic monitoring and analysis",
		IsPublic:     true,
		LayoutConfig: map[string]any{"columns": 2, "rows": 3},
	},
	{
		Title:        "Environmental Metrics",
		Description:  "Air quality, weather, and environmental data",
		IsPublic:     false,
		LayoutConfig: map[string]any{"columns": 4, "rows": 2},
	},
}

var demoWidgets = []domain.Widget{
	{
		WidgetType: "chart",
		Title:      "Population Growth",
		Config:     map[string]any{"chart_type": "line", "refresh_rate": 300},
		Position:   map[string]any{"x": 0, "y": 0, "w": 2, "h": 2},
		DataSource: "/api/v1/metrics/aggregate?city=Seattle&metric_type=population&days=30",
	},
	{
		WidgetType:      "stat",
		Title:           "Current Temperature",
		Config:          map[string]any{"unit": "celsius", "refresh_rate": 60},
		Position:        map[string]any{"x": 2, "y": 0, "w": 1, "h": 1},
		DataSource:      "/api/v1/metrics/latest?city=Seattle",
		RefreshInterval: 60,
	},
	{
		WidgetType: "map",
		Title:      "Traffic Heatmap",
		Config:     map[string]any{"zoom": 12, "center": map[string]any{"lat": 40.7128, "lng": -74.0060}},
		Position:   map[string]any{"x": 0, "y": 2, "w": 3, "h": 2},
		DataSource: "/api/v1/metrics?metric_type=traffic_flow",
	},
}

// seedDashboards creates the demo user with three dashboards and puts the
// demo widgets on the first one. A second run is a no-op.
func seedDashboards(ctx context.Context, svc *dashboards.Service, logger *util.ServiceLogger) error {
	user, err := svc.CreateUser(ctx, dashboards.NewUser{
		Username: "testuser",
		Email:    "test@citypulse.com",
		FullName: "Test User",
		Password: "testpassword",
	})
	if errors.Is(err, domain.ErrConflict) {
		logger.Info("Demo user already exists, skipping dashboards")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("Created user", zap.String("username", user.Username), zap.Int64("id", user.ID))

	for i, d := range demoDashboards {
		d.OwnerID = user.ID
		created, err := svc.CreateDashboard(ctx, d)
		if err != nil {
			return err
		}
		logger.Info("Created dashboard", zap.String("title", created.Title), zap.Int64("id", created.ID))
		if i != 0 {
			continue
		}
		for _, w := range demoWidgets {
			if _, err := svc.CreateWidget(ctx, created.ID, w); err != nil {
				return err
			}
		}
	}
	return nil
}
