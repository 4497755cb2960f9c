// Package dashboards manages users, their dashboards and the widgets placed
// on them. It is plain record keeping over domain.DashboardStore; metric
// queries live in package metrics.
package dashboards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"citypulse/internal/domain"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type Service struct {
	store  domain.DashboardStore
	hasher Hasher
}

// NewService wires the store with a password hasher. A nil hasher means
// bcrypt at the default cost.
func NewService(store domain.DashboardStore, hasher Hasher) *Service {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &Service{store: store, hasher: hasher}
}

// NewUser is the input of CreateUser. Password is only kept as a hash.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Password string
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", domain.ErrEmptyField, field)
	}
	return nil
}

// page checks skip/limit and clamps limit to MaxPageLimit.
func page(skip, limit int) (int, int, error) {
	if skip < 0 || limit <= 0 {
		return 0, 0, fmt.Errorf("%w: skip %d, limit %d", domain.ErrInvalidPagination, skip, limit)
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return skip, limit, nil
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (domain.User, error) {
	for _, f := range [][2]string{{"username", in.Username}, {"email", in.Email}, {"password", in.Password}} {
		if err := required(f[0], f[1]); err != nil {
			return domain.User{}, err
		}
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, skip, limit int) ([]domain.User, error) {
	skip, limit, err := page(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, skip, limit)
}

func (s *Service) ListDashboards(ctx context.Context, skip, limit int) ([]domain.Dashboard, error) {
	skip, limit, err := page(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListDashboards(ctx, skip, limit)
}

// GetDashboard returns the dashboard together with its widgets.
func (s *Service) GetDashboard(ctx context.Context, id int64) (domain.Dashboard, error) {
	d, err := s.store.GetDashboard(ctx, id)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if d.Widgets, err = s.store.ListWidgets(ctx, id); err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}

func (s *Service) CreateDashboard(ctx context.Context, d domain.Dashboard) (domain.Dashboard, error) {
	d.Title = strings.TrimSpace(d.Title)
	if err := required("title", d.Title); err != nil {
		return domain.Dashboard{}, err
	}
	if _, err := s.store.GetUser(ctx, d.OwnerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Dashboard{}, fmt.Errorf("%w: owner %d", domain.ErrUnknownReference, d.OwnerID)
		}
		return domain.Dashboard{}, err
	}
	d.ID = 0
	d.Widgets = nil
	if err := s.store.CreateDashboard(ctx, &d); err != nil {
		return domain.Dashboard{}, err
	}
	return d, nil
}

func (s *Service) UpdateDashboard(ctx context.Context, id int64, patch domain.DashboardPatch) (domain.Dashboard, error) {
	d, err := s.store.GetDashboard(ctx, id)
	if err != nil {
		return domain.Dashboard{}, err
	}
	patch.Apply(&d)
	d.Title = strings.TrimSpace(d.Title)
	if err := required("title", d.Title); err != nil {
		return domain.Dashboard{}, err
	}
	if err := s.store.UpdateDashboard(ctx, &d); err != nil {
		return domain.Dashboard{}, err
	}
	return s.GetDashboard(ctx, id)
}

// DeleteDashboard removes the dashboard and all of its widgets.
func (s *Service) DeleteDashboard(ctx context.Context, id int64) error {
	return s.store.DeleteDashboard(ctx, id)
}

func (s *Service) ListWidgets(ctx context.Context, dashboardID int64) ([]domain.Widget, error) {
	if _, err := s.store.GetDashboard(ctx, dashboardID); err != nil {
		return nil, err
	}
	return s.store.ListWidgets(ctx, dashboardID)
}

func checkWidget(w *domain.Widget) error {
	w.WidgetType = strings.TrimSpace(w.WidgetType)
	w.Title = strings.TrimSpace(w.Title)
	if err := required("widget_type", w.WidgetType); err != nil {
		return err
	}
	if err := required("title", w.Title); err != nil {
		return err
	}
	if w.RefreshInterval < 0 {
		return fmt.Errorf("%w: refresh_interval %d", domain.ErrInvalidField, w.RefreshInterval)
	}
	return nil
}

func (s *Service) CreateWidget(ctx context.Context, dashboardID int64, w domain.Widget) (domain.Widget, error) {
	if _, err := s.store.GetDashboard(ctx, dashboardID); err != nil {
		return domain.Widget{}, err
	}
	if err := checkWidget(&w); err != nil {
		return domain.Widget{}, err
	}
	w.ID = 0
	w.DashboardID = dashboardID
	if err := s.store.CreateWidget(ctx, &w); err != nil {
		return domain.Widget{}, err
	}
	return w, nil
}

func (s *Service) GetWidget(ctx context.Context, id int64) (domain.Widget, error) {
	return s.store.GetWidget(ctx, id)
}

func (s *Service) UpdateWidget(ctx context.Context, id int64, patch domain.WidgetPatch) (domain.Widget, error) {
	w, err := s.store.GetWidget(ctx, id)
	if err != nil {
		return domain.Widget{}, err
	}
	patch.Apply(&w)
	if err := checkWidget(&w); err != nil {
		return domain.Widget{}, err
	}
	if err := s.store.UpdateWidget(ctx, &w); err != nil {
		return domain.Widget{}, err
	}
	return s.store.GetWidget(ctx, id)
}

func (s *Service) DeleteWidget(ctx context.Context, id int64) error {
	return s.store.DeleteWidget(ctx, id)
}
