package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"

	"citypulse/internal/domain"
)

// sqlStore implements domain.Store on database/sql. SQLiteStore and
// PostgresStore embed it and only differ in how they open the pool.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

const observationColumns = "id, city, metric_type, value, unit, timestamp, source, attributes, created_at"

func (s *sqlStore) createSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	log.Printf("%s store initialized.", s.dialect.name())
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *sqlStore) stamp() int64 {
	return s.now().UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func encodeMap(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeMap(v sql.NullString) (map[string]any, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(v.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (domain.Observation, error) {
	var (
		o          domain.Observation
		unit       sql.NullString
		source     sql.NullString
		attributes sql.NullString
		ts         int64
		created    int64
	)
	if err := row.Scan(&o.ID, &o.City, &o.MetricType, &o.Value, &unit, &ts, &source, &attributes, &created); err != nil {
		return domain.Observation{}, err
	}
	attrs, err := decodeMap(attributes)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("error decoding attributes of observation %d: %w", o.ID, err)
	}
	o.Unit = unit.String
	o.Source = source.String
	o.Attributes = attrs
	o.Timestamp = fromMicros(ts)
	o.CreatedAt = fromMicros(created)
	return o, nil
}

func scanObservations(rows *sql.Rows) ([]domain.Observation, error) {
	defer rows.Close()

	out := make([]domain.Observation, 0)
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning observation: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) InsertObservation(ctx context.Context, o *domain.Observation) error {
	attrs, err := encodeMap(o.Attributes)
	if err != nil {
		return fmt.Errorf("error encoding attributes: %w", err)
	}
	created := s.stamp()

	err = s.queryRow(ctx,
		`INSERT INTO city_metrics (city, metric_type, value, unit, timestamp, source, attributes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		o.City, o.MetricType, o.Value, nullString(o.Unit), o.Timestamp.UTC().UnixMicro(),
		nullString(o.Source), attrs, created,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("error inserting observation: %w", err)
	}
	o.Timestamp = fromMicros(o.Timestamp.UTC().UnixMicro())
	o.CreatedAt = fromMicros(created)
	return nil
}

func (s *sqlStore) GetObservation(ctx context.Context, id int64) (domain.Observation, error) {
	row := s.queryRow(ctx, "SELECT "+observationColumns+" FROM city_metrics WHERE id = ?", id)
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, fmt.Errorf("observation %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("error querying observation: %w", err)
	}
	return o, nil
}

func (s *sqlStore) ListObservations(ctx context.Context, q domain.RecentQuery) ([]domain.Observation, error) {
	query := "SELECT " + observationColumns + " FROM city_metrics WHERE timestamp >= ?"
	args := []any{q.Since.UTC().UnixMicro()}

	if q.City != "" {
		query += " AND city = ?"
		args = append(args, q.City)
	}
	if q.MetricType != "" {
		query += " AND metric_type = ?"
		args = append(args, q.MetricType)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	query, args = s.pageClause(query, args, q.Skip, q.Limit)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying observations: %w", err)
	}
	return scanObservations(rows)
}

func (s *sqlStore) distinct(ctx context.Context, col string) ([]string, error) {
	rows, err := s.query(ctx, "SELECT "+col+" FROM city_metrics GROUP BY "+col+" ORDER BY "+s.dialect.textOrder(col))
	if err != nil {
		return nil, fmt.Errorf("error querying distinct %s: %w", col, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", col, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) DistinctCities(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "city")
}

func (s *sqlStore) DistinctMetricTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "metric_type")
}

func (s *sqlStore) AggregateDaily(ctx context.Context, city, metricType string, since time.Time, kind domain.AggregationKind) ([]domain.Aggregate, error) {
	fn, ok := aggregateFuncs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAggregation, kind)
	}

	query := fmt.Sprintf(
		`SELECT bucket, agg, bucket_unit FROM (
			SELECT %s AS bucket, %s(value) AS agg, COALESCE(unit, '') AS bucket_unit
			FROM city_metrics
			WHERE city = ? AND metric_type = ? AND timestamp >= ?
			GROUP BY 1, 3
		) grouped
		ORDER BY bucket, %s`,
		s.dialect.dateBucket("timestamp"), fn, s.dialect.textOrder("bucket_unit"))

	rows, err := s.query(ctx, query, city, metricType, since.UTC().UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("error aggregating observations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Aggregate, 0)
	for rows.Next() {
		a := domain.Aggregate{AggregationType: kind}
		if err := rows.Scan(&a.Date, &a.Value, &a.Unit); err != nil {
			return nil, fmt.Errorf("error scanning aggregate: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) LatestPerType(ctx context.Context, city string) ([]domain.Observation, error) {
	inner := "SELECT " + observationColumns +
		", ROW_NUMBER() OVER (PARTITION BY city, metric_type ORDER BY timestamp DESC, id DESC) AS rn FROM city_metrics"
	var args []any
	if city != "" {
		inner += " WHERE city = ?"
		args = append(args, city)
	}
	query := "SELECT " + observationColumns + " FROM (" + inner + ") ranked WHERE rn = 1 ORDER BY " +
		s.dialect.textOrder("city") + ", " + s.dialect.textOrder("metric_type")

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying latest observations: %w", err)
	}
	return scanObservations(rows)
}

func (s *sqlStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.queryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting %s: %w", table, err)
	}
	return n, nil
}

func (s *sqlStore) CountObservations(ctx context.Context) (int64, error) {
	return s.count(ctx, "city_metrics")
}

func (s *sqlStore) CountUsers(ctx context.Context) (int64, error) {
	return s.count(ctx, "users")
}

func (s *sqlStore) CountDashboards(ctx context.Context) (int64, error) {
	return s.count(ctx, "dashboards")
}

func (s *sqlStore) CountWidgets(ctx context.Context) (int64, error) {
	return s.count(ctx, "widgets")
}

// pageClause appends LIMIT/OFFSET. A non-positive limit means no limit.
func (s *sqlStore) pageClause(query string, args []any, skip, limit int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	} else if s.dialect.name() == "sqlite" {
		// SQLite needs a LIMIT before OFFSET.
		query += " LIMIT -1"
	}
	query += " OFFSET ?"
	return query, append(args, skip)
}
