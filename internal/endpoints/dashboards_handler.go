package endpoints

import (
	"net/http"

	"go.uber.org/zap"

	"citypulse/internal/dashboards"
	"citypulse/internal/domain"
	"citypulse/internal/util"
)

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type CreateDashboardRequest struct {
	Title        string         `json:"title" validate:"required,max=200"`
	Description  string         `json:"description"`
	OwnerID      int64          `json:"owner_id" validate:"required,gt=0"`
	IsPublic     bool           `json:"is_public"`
	LayoutConfig map[string]any `json:"layout_config"`
}

type UpdateDashboardRequest struct {
	Title        *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string        `json:"description"`
	IsPublic     *bool          `json:"is_public"`
	LayoutConfig map[string]any `json:"layout_config"`
}

type CreateWidgetRequest struct {
	WidgetType      string         `json:"widget_type" validate:"required,oneof=chart map stat table"`
	Title           string         `json:"title" validate:"required,max=200"`
	Config          map[string]any `json:"config"`
	Position        map[string]any `json:"position"`
	DataSource      string         `json:"data_source" validate:"max=500"`
	RefreshInterval int            `json:"refresh_interval" validate:"gte=0"`
}

type UpdateWidgetRequest struct {
	WidgetType      *string        `json:"widget_type" validate:"omitempty,oneof=chart map stat table"`
	Title           *string        `json:"title" validate:"omitempty,min=1,max=200"`
	Config          map[string]any `json:"config"`
	Position        map[string]any `json:"position"`
	DataSource      *string        `json:"data_source" validate:"omitempty,max=500"`
	RefreshInterval *int           `json:"refresh_interval" validate:"omitempty,gte=0"`
}

// Dashboards serves users, dashboards and widgets.
type Dashboards struct {
	Response APIResponse
	logger   *util.ServiceLogger
	service  *dashboards.Service
}

func (d *Dashboards) Init(service *dashboards.Service, webLogger *util.ServiceLogger) {
	d.service = service
	d.logger = webLogger
}

func (d *Dashboards) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logFailure(d.logger, r, msg, err)
	d.Response.WriteErrorResponse(w, err)
}

func (d *Dashboards) page(r *http.Request) (int, int, error) {
	skip, err := queryIntOr(r, "skip", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryIntOr(r, "limit", dashboards.DefaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	return skip, limit, nil
}

func (d *Dashboards) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		d.fail(w, r, "Occured while decoding user body", err)
		return
	}
	user, err := d.service.CreateUser(r.Context(), dashboards.NewUser{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		d.fail(w, r, "Occured while CreateUser()", err)
		return
	}
	d.logger.Info("User created", zap.Int64("id", user.ID), zap.String("username", user.Username))
	d.Response.WriteResultResponseWithStatusCode(w, user, http.StatusCreated)
}

func (d *Dashboards) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := d.page(r)
	if err != nil {
		d.fail(w, r, "While reading skip/limit from URL", err)
		return
	}
	users, err := d.service.ListUsers(r.Context(), skip, limit)
	if err != nil {
		d.fail(w, r, "Occured while ListUsers()", err)
		return
	}
	d.Response.WriteResultResponse(w, users)
}

func (d *Dashboards) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	user, err := d.service.GetUser(r.Context(), id)
	if err != nil {
		d.fail(w, r, "Occured while GetUser()", err)
		return
	}
	d.Response.WriteResultResponse(w, user)
}

func (d *Dashboards) ListDashboardsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := d.page(r)
	if err != nil {
		d.fail(w, r, "While reading skip/limit from URL", err)
		return
	}
	list, err := d.service.ListDashboards(r.Context(), skip, limit)
	if err != nil {
		d.fail(w, r, "Occured while ListDashboards()", err)
		return
	}
	d.Response.WriteResultResponse(w, list)
}

func (d *Dashboards) GetDashboardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	dashboard, err := d.service.GetDashboard(r.Context(), id)
	if err != nil {
		d.fail(w, r, "Occured while GetDashboard()", err)
		return
	}
	if dashboard.Widgets == nil {
		dashboard.Widgets = []domain.Widget{}
	}
	d.Response.WriteResultResponse(w, dashboard)
}

func (d *Dashboards) CreateDashboardHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateDashboardRequest
	if err := decodeBody(r, &req); err != nil {
		d.fail(w, r, "Occured while decoding dashboard body", err)
		return
	}
	dashboard, err := d.service.CreateDashboard(r.Context(), domain.Dashboard{
		Title:        req.Title,
		Description:  req.Description,
		OwnerID:      req.OwnerID,
		IsPublic:     req.IsPublic,
		LayoutConfig: req.LayoutConfig,
	})
	if err != nil {
		d.fail(w, r, "Occured while CreateDashboard()", err)
		return
	}
	d.Response.WriteResultResponseWithStatusCode(w, dashboard, http.StatusCreated)
}

func (d *Dashboards) UpdateDashboardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	var req UpdateDashboardRequest
	if err := decodeBody(r, &req); err != nil {
		d.fail(w, r, "Occured while decoding dashboard body", err)
		return
	}
	dashboard, err := d.service.UpdateDashboard(r.Context(), id, domain.DashboardPatch{
		Title:        req.Title,
		Description:  req.Description,
		IsPublic:     req.IsPublic,
		LayoutConfig: req.LayoutConfig,
	})
	if err != nil {
		d.fail(w, r, "Occured while UpdateDashboard()", err)
		return
	}
	d.Response.WriteResultResponse(w, dashboard)
}

func (d *Dashboards) DeleteDashboardHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	if err := d.service.DeleteDashboard(r.Context(), id); err != nil {
		d.fail(w, r, "Occured while DeleteDashboard()", err)
		return
	}
	d.Response.WriteResultResponse(w, map[string]string{"message": "Dashboard deleted successfully"})
}

func (d *Dashboards) ListWidgetsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	widgets, err := d.service.ListWidgets(r.Context(), id)
	if err != nil {
		d.fail(w, r, "Occured while ListWidgets()", err)
		return
	}
	d.Response.WriteResultResponse(w, widgets)
}

func (d *Dashboards) CreateWidgetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	var req CreateWidgetRequest
	if err := decodeBody(r, &req); err != nil {
		d.fail(w, r, "Occured while decoding widget body", err)
		return
	}
	widget, err := d.service.CreateWidget(r.Context(), id, domain.Widget{
		WidgetType:      req.WidgetType,
		Title:           req.Title,
		Config:          req.Config,
		Position:        req.Position,
		DataSource:      req.DataSource,
		RefreshInterval: req.RefreshInterval,
	})
	if err != nil {
		d.fail(w, r, "Occured while CreateWidget()", err)
		return
	}
	d.Response.WriteResultResponseWithStatusCode(w, widget, http.StatusCreated)
}

func (d *Dashboards) GetWidgetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	widget, err := d.service.GetWidget(r.Context(), id)
	if err != nil {
		d.fail(w, r, "Occured while GetWidget()", err)
		return
	}
	d.Response.WriteResultResponse(w, widget)
}

func (d *Dashboards) UpdateWidgetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	var req UpdateWidgetRequest
	if err := decodeBody(r, &req); err != nil {
		d.fail(w, r, "Occured while decoding widget body", err)
		return
	}
	widget, err := d.service.UpdateWidget(r.Context(), id, domain.WidgetPatch{
		WidgetType:      req.WidgetType,
		Title:           req.Title,
		Config:          req.Config,
		Position:        req.Position,
		DataSource:      req.DataSource,
		RefreshInterval: req.RefreshInterval,
	})
	if err != nil {
		d.fail(w, r, "Occured while UpdateWidget()", err)
		return
	}
	d.Response.WriteResultResponse(w, widget)
}

func (d *Dashboards) DeleteWidgetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		d.fail(w, r, "While reading id from URL", err)
		return
	}
	if err := d.service.DeleteWidget(r.Context(), id); err != nil {
		d.fail(w, r, "Occured while DeleteWidget()", err)
		return
	}
	d.Response.WriteResultResponse(w, map[string]string{"message": "Widget deleted successfully"})
}
