package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"citypulse/internal/domain"
)

const (
	userColumns      = "id, username, email, full_name, hashed_password, is_active, created_at, updated_at"
	dashboardColumns = "id, title, description, owner_id, is_public, layout_config, created_at, updated_at"
	widgetColumns    = "id, dashboard_id, widget_type, title, config, position, data_source, refresh_interval, created_at, updated_at"
)

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u        domain.User
		fullName sql.NullString
		created  int64
		updated  int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &fullName, &u.PasswordHash, &u.IsActive, &created, &updated); err != nil {
		return domain.User{}, err
	}
	u.FullName = fullName.String
	u.CreatedAt = fromMicros(created)
	u.UpdatedAt = fromMicros(updated)
	return u, nil
}

func scanDashboard(row rowScanner) (domain.Dashboard, error) {
	var (
		d           domain.Dashboard
		description sql.NullString
		layout      sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&d.ID, &d.Title, &description, &d.OwnerID, &d.IsPublic, &layout, &created, &updated); err != nil {
		return domain.Dashboard{}, err
	}
	m, err := decodeMap(layout)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("error decoding layout of dashboard %d: %w", d.ID, err)
	}
	d.Description = description.String
	d.LayoutConfig = m
	d.CreatedAt = fromMicros(created)
	d.UpdatedAt = fromMicros(updated)
	return d, nil
}

func scanWidget(row rowScanner) (domain.Widget, error) {
	var (
		w          domain.Widget
		config     sql.NullString
		position   sql.NullString
		dataSource sql.NullString
		refresh    sql.NullInt64
		created    int64
		updated    int64
	)
	if err := row.Scan(&w.ID, &w.DashboardID, &w.WidgetType, &w.Title, &config, &position, &dataSource, &refresh, &created, &updated); err != nil {
		return domain.Widget{}, err
	}
	var err error
	if w.Config, err = decodeMap(config); err != nil {
		return domain.Widget{}, fmt.Errorf("error decoding config of widget %d: %w", w.ID, err)
	}
	if w.Position, err = decodeMap(position); err != nil {
		return domain.Widget{}, fmt.Errorf("error decoding position of widget %d: %w", w.ID, err)
	}
	w.DataSource = dataSource.String
	w.RefreshInterval = int(refresh.Int64)
	w.CreatedAt = fromMicros(created)
	w.UpdatedAt = fromMicros(updated)
	return w, nil
}

func notFoundOr(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("error querying %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

const pgUniqueViolation = "23505"

// affectedOrNotFound turns an UPDATE/DELETE that touched no rows into ErrNotFound.
func affectedOrNotFound(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
	}
	return nil
}

func (s *sqlStore) CreateUser(ctx context.Context, u *domain.User) error {
	now := s.stamp()
	err := s.queryRow(ctx,
		`INSERT INTO users (username, email, full_name, hashed_password, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		u.Username, u.Email, nullString(u.FullName), u.PasswordHash, u.IsActive, now, now,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("error inserting user %q: %w", u.Username, domain.ErrConflict)
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	u.CreatedAt = fromMicros(now)
	u.UpdatedAt = u.CreatedAt
	return nil
}

func (s *sqlStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(s.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return domain.User{}, notFoundOr(err, "user", id)
	}
	return u, nil
}

func (s *sqlStore) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	query, args := s.pageClause("SELECT "+userColumns+" FROM users ORDER BY id", nil, skip, limit)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) CreateDashboard(ctx context.Context, d *domain.Dashboard) error {
	layout, err := encodeMap(d.LayoutConfig)
	if err != nil {
		return fmt.Errorf("error encoding layout config: %w", err)
	}
	now := s.stamp()
	err = s.queryRow(ctx,
		`INSERT INTO dashboards (title, description, owner_id, is_public, layout_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		d.Title, nullString(d.Description), d.OwnerID, d.IsPublic, layout, now, now,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("error inserting dashboard: %w", err)
	}
	d.CreatedAt = fromMicros(now)
	d.UpdatedAt = d.CreatedAt
	return nil
}

func (s *sqlStore) GetDashboard(ctx context.Context, id int64) (domain.Dashboard, error) {
	d, err := scanDashboard(s.queryRow(ctx, "SELECT "+dashboardColumns+" FROM dashboards WHERE id = ?", id))
	if err != nil {
		return domain.Dashboard{}, notFoundOr(err, "dashboard", id)
	}
	return d, nil
}

func (s *sqlStore) ListDashboards(ctx context.Context, skip, limit int) ([]domain.Dashboard, error) {
	query, args := s.pageClause("SELECT "+dashboardColumns+" FROM dashboards ORDER BY id", nil, skip, limit)
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying dashboards: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Dashboard, 0)
	for rows.Next() {
		d, err := scanDashboard(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning dashboard: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) UpdateDashboard(ctx context.Context, d *domain.Dashboard) error {
	layout, err := encodeMap(d.LayoutConfig)
	if err != nil {
		return fmt.Errorf("error encoding layout config: %w", err)
	}
	now := s.stamp()
	res, err := s.exec(ctx,
		`UPDATE dashboards SET title = ?, description = ?, is_public = ?, layout_config = ?, updated_at = ?
		WHERE id = ?`,
		d.Title, nullString(d.Description), d.IsPublic, layout, now, d.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating dashboard: %w", err)
	}
	if err := affectedOrNotFound(res, "dashboard", d.ID); err != nil {
		return err
	}
	d.UpdatedAt = fromMicros(now)
	return nil
}

// DeleteDashboard removes the dashboard and its widgets in one transaction.
// Widgets are deleted explicitly so the cascade does not depend on the
// connection having foreign keys enabled.
func (s *sqlStore) DeleteDashboard(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM widgets WHERE dashboard_id = ?"), id); err != nil {
		return fmt.Errorf("error deleting widgets: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM dashboards WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("error deleting dashboard: %w", err)
	}
	if err := affectedOrNotFound(res, "dashboard", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing dashboard delete: %w", err)
	}
	return nil
}

func (s *sqlStore) CreateWidget(ctx context.Context, w *domain.Widget) error {
	config, err := encodeMap(w.Config)
	if err != nil {
		return fmt.Errorf("error encoding widget config: %w", err)
	}
	position, err := encodeMap(w.Position)
	if err != nil {
		return fmt.Errorf("error encoding widget position: %w", err)
	}
	now := s.stamp()
	err = s.queryRow(ctx,
		`INSERT INTO widgets (dashboard_id, widget_type, title, config, position, data_source, refresh_interval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		w.DashboardID, w.WidgetType, w.Title, config, position, nullString(w.DataSource),
		sql.NullInt64{Int64: int64(w.RefreshInterval), Valid: w.RefreshInterval > 0}, now, now,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("error inserting widget: %w", err)
	}
	w.CreatedAt = fromMicros(now)
	w.UpdatedAt = w.CreatedAt
	return nil
}

func (s *sqlStore) GetWidget(ctx context.Context, id int64) (domain.Widget, error) {
	w, err := scanWidget(s.queryRow(ctx, "SELECT "+widgetColumns+" FROM widgets WHERE id = ?", id))
	if err != nil {
		return domain.Widget{}, notFoundOr(err, "widget", id)
	}
	return w, nil
}

func (s *sqlStore) ListWidgets(ctx context.Context, dashboardID int64) ([]domain.Widget, error) {
	rows, err := s.query(ctx, "SELECT "+widgetColumns+" FROM widgets WHERE dashboard_id = ? ORDER BY id", dashboardID)
	if err != nil {
		return nil, fmt.Errorf("error querying widgets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Widget, 0)
	for rows.Next() {
		w, err := scanWidget(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning widget: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *sqlStore) UpdateWidget(ctx context.Context, w *domain.Widget) error {
	config, err := encodeMap(w.Config)
	if err != nil {
		return fmt.Errorf("error encoding widget config: %w", err)
	}
	position, err := encodeMap(w.Position)
	if err != nil {
		return fmt.Errorf("error encoding widget position: %w", err)
	}
	now := s.stamp()
	res, err := s.exec(ctx,
		`UPDATE widgets SET widget_type = ?, title = ?, config = ?, position = ?, data_source = ?, refresh_interval = ?, updated_at = ?
		WHERE id = ?`,
		w.WidgetType, w.Title, config, position, nullString(w.DataSource),
		sql.NullInt64{Int64: int64(w.RefreshInterval), Valid: w.RefreshInterval > 0}, now, w.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating widget: %w", err)
	}
	if err := affectedOrNotFound(res, "widget", w.ID); err != nil {
		return err
	}
	w.UpdatedAt = fromMicros(now)
	return nil
}

func (s *sqlStore) DeleteWidget(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "DELETE FROM widgets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("error deleting widget: %w", err)
	}
	return affectedOrNotFound(res, "widget", id)
}
