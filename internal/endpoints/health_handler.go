package endpoints

import (
	"context"
	"net/http"
	"time"

	"citypulse/internal/util"
)

const (
	ServiceName    = "CityPulse Analytics API"
	ServiceVersion = "1.0.0"
)

const pingTimeout = 2 * time.Second

// Pinger is the part of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	Response APIResponse
	logger   *util.ServiceLogger
	store    Pinger
}

func (h *Health) Init(store Pinger, webLogger *util.ServiceLogger) {
	h.store = store
	h.logger = webLogger
}

func (h *Health) RootHandler(w http.ResponseWriter, r *http.Request) {
	h.Response.WriteResultResponse(w, map[string]string{
		"message": "Welcome to " + ServiceName,
		"version": ServiceVersion,
		"api":     "/api/v1",
	})
}

// HealthHandler reports 503 when the store does not answer a ping.
func (h *Health) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logFailure(h.logger, r, "Store ping failed", err)
		h.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusServiceUnavailable)
		return
	}
	h.Response.WriteResultResponse(w, map[string]string{"status": "healthy"})
}

// NotFoundHandler and MethodNotAllowedHandler keep router errors in the
// APIResponse envelope.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	APIResponse{}.WriteErrorResponse(w, ErrRouteNotFound)
}

func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	APIResponse{}.WriteErrorResponse(w, ErrMethodNotAllowed)
}
