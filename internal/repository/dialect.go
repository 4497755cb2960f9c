package repository

import (
	"strconv"
	"strings"

	"citypulse/internal/domain"
)

// dialect holds the few places where SQLite and Postgres disagree.
// Queries are written with ? placeholders and rebound per dialect.
type dialect interface {
	name() string
	rebind(query string) string
	schema() []string
	// dateBucket renders a unix-microsecond column as a UTC YYYY-MM-DD string.
	dateBucket(col string) string
	// textOrder makes text ordering byte-wise so every backend sorts alike.
	textOrder(col string) string
}

var aggregateFuncs = map[domain.AggregationKind]string{
	domain.AggregationAvg: "AVG",
	domain.AggregationMin: "MIN",
	domain.AggregationMax: "MAX",
	domain.AggregationSum: "SUM",
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) dateBucket(col string) string {
	return "date(" + col + " / 1000000, 'unixepoch')"
}

func (sqliteDialect) textOrder(col string) string { return col }

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT,
			hashed_password TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dashboards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			owner_id INTEGER NOT NULL REFERENCES users(id),
			is_public BOOLEAN NOT NULL DEFAULT 0,
			layout_config TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS widgets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dashboard_id INTEGER NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
			widget_type TEXT NOT NULL,
			title TEXT NOT NULL,
			config TEXT,
			position TEXT,
			data_source TEXT,
			refresh_interval INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS city_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			value REAL NOT NULL,
			unit TEXT,
			timestamp INTEGER NOT NULL,
			source TEXT,
			attributes TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_city_metrics_pair_ts ON city_metrics(city, metric_type, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_city_metrics_ts ON city_metrics(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_widgets_dashboard ON widgets(dashboard_id);`,
	}
}

type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) dateBucket(col string) string {
	return "to_char(to_timestamp(" + col + " / 1000000.0) AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}

func (postgresDialect) textOrder(col string) string { return col + ` COLLATE "C"` }

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			full_name TEXT,
			hashed_password TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dashboards (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			owner_id BIGINT NOT NULL REFERENCES users(id),
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			layout_config TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS widgets (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			dashboard_id BIGINT NOT NULL REFERENCES dashboards(id) ON DELETE CASCADE,
			widget_type TEXT NOT NULL,
			title TEXT NOT NULL,
			config TEXT,
			position TEXT,
			data_source TEXT,
			refresh_interval INTEGER,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS city_metrics (
			id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			city TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT,
			timestamp BIGINT NOT NULL,
			source TEXT,
			attributes TEXT,
			created_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_city_metrics_pair_ts ON city_metrics(city, metric_type, timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_city_metrics_ts ON city_metrics(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_widgets_dashboard ON widgets(dashboard_id);`,
	}
}
