package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Dashboard struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	OwnerID      int64          `json:"owner_id"`
	IsPublic     bool           `json:"is_public"`
	LayoutConfig map[string]any `json:"layout_config"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Widgets      []Widget       `json:"widgets,omitempty"`
}

// Widget belongs to exactly one dashboard and is deleted with it.
// DataSource usually names a metrics endpoint, e.g. /api/v1/metrics/latest?city=Seattle.
type Widget struct {
	ID              int64          `json:"id"`
	DashboardID     int64          `json:"dashboard_id"`
	WidgetType      string         `json:"widget_type"`
	Title           string         `json:"title"`
	Config          map[string]any `json:"config"`
	Position        map[string]any `json:"position"`
	DataSource      string         `json:"data_source,omitempty"`
	RefreshInterval int            `json:"refresh_interval,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DashboardPatch carries a partial update. Nil fields are left unchanged.
type DashboardPatch struct {
	Title        *string
	Description  *string
	IsPublic     *bool
	LayoutConfig map[string]any
}

func (p DashboardPatch) Apply(d *Dashboard) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.IsPublic != nil {
		d.IsPublic = *p.IsPublic
	}
	if p.LayoutConfig != nil {
		d.LayoutConfig = p.LayoutConfig
	}
}

// WidgetPatch carries a partial update. Nil fields are left unchanged.
type WidgetPatch struct {
	WidgetType      *string
	Title           *string
	Config          map[string]any
	Position        map[string]any
	DataSource      *string
	RefreshInterval *int
}

func (p WidgetPatch) Apply(w *Widget) {
	if p.WidgetType != nil {
		w.WidgetType = *p.WidgetType
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Config != nil {
		w.Config = p.Config
	}
	if p.Position != nil {
		w.Position = p.Position
	}
	if p.DataSource != nil {
		w.DataSource = *p.DataSource
	}
	if p.RefreshInterval != nil {
		w.RefreshInterval = *p.RefreshInterval
	}
}
