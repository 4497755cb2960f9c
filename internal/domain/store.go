package domain

import (
	"context"
	"time"
)

// MetricStore persists observations. Implementations never retry; errors
// are returned to the caller as they happen.
type MetricStore interface {
	InsertObservation(ctx context.Context, o *Observation) error
	GetObservation(ctx context.Context, id int64) (Observation, error)
	ListObservations(ctx context.Context, q RecentQuery) ([]Observation, error)
	DistinctCities(ctx context.Context) ([]string, error)
	DistinctMetricTypes(ctx context.Context) ([]string, error)
	// AggregateDaily groups by (UTC date, unit), ordered by date then unit.
	AggregateDaily(ctx context.Context, city, metricType string, since time.Time, kind AggregationKind) ([]Aggregate, error)
	// LatestPerType returns one row per (city, metric_type): highest timestamp, then highest id.
	LatestPerType(ctx context.Context, city string) ([]Observation, error)
	CountObservations(ctx context.Context) (int64, error)
}

type DashboardStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, skip, limit int) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateDashboard(ctx context.Context, d *Dashboard) error
	GetDashboard(ctx context.Context, id int64) (Dashboard, error)
	ListDashboards(ctx context.Context, skip, limit int) ([]Dashboard, error)
	UpdateDashboard(ctx context.Context, d *Dashboard) error
	DeleteDashboard(ctx context.Context, id int64) error
	CountDashboards(ctx context.Context) (int64, error)

	CreateWidget(ctx context.Context, w *Widget) error
	GetWidget(ctx context.Context, id int64) (Widget, error)
	ListWidgets(ctx context.Context, dashboardID int64) ([]Widget, error)
	UpdateWidget(ctx context.Context, w *Widget) error
	DeleteWidget(ctx context.Context, id int64) error
	CountWidgets(ctx context.Context) (int64, error)
}

// Store is a full backend: observations plus the dashboard records.
type Store interface {
	MetricStore
	DashboardStore
	Init() error
	Ping(ctx context.Context) error
	Close() error
}
