package endpoints

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"citypulse/internal/domain"
	"citypulse/internal/metrics"
	"citypulse/internal/util"
)

const DefaultAggregation = string(domain.AggregationAvg)

// RecordMetricRequest is the body of POST /metrics.
type RecordMetricRequest struct {
	City       string         `json:"city" validate:"required,max=100"`
	MetricType string         `json:"metric_type" validate:"required,max=50"`
	Value      *float64       `json:"value" validate:"required"`
	Unit       string         `json:"unit" validate:"max=32"`
	Timestamp  *time.Time     `json:"timestamp"`
	Source     string         `json:"source" validate:"max=100"`
	Attributes map[string]any `json:"attributes"`
}

type Metrics struct {
	Response APIResponse
	logger   *util.ServiceLogger
	engine   *metrics.Engine
}

func (m *Metrics) Init(engine *metrics.Engine, webLogger *util.ServiceLogger) {
	m.engine = engine
	m.logger = webLogger
}

func (m *Metrics) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logFailure(m.logger, r, msg, err)
	m.Response.WriteErrorResponse(w, err)
}

// ListMetricsHandler serves GET /metrics?city=&metric_type=&days=&skip=&limit=.
func (m *Metrics) ListMetricsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := metrics.RecentParams{
		City:       q.Get("city"),
		MetricType: q.Get("metric_type"),
	}

	var err error
	if params.WindowDays, err = queryInt(r, "days"); err != nil {
		m.fail(w, r, "While reading days from URL", err)
		return
	}
	if params.Skip, err = queryInt(r, "skip"); err != nil {
		m.fail(w, r, "While reading skip from URL", err)
		return
	}
	if params.Limit, err = queryInt(r, "limit"); err != nil {
		m.fail(w, r, "While reading limit from URL", err)
		return
	}

	observations, err := m.engine.ListRecent(r.Context(), params)
	if err != nil {
		m.fail(w, r, "Occured while ListRecent()", err)
		return
	}
	m.Response.WriteResultResponse(w, observations)
}

func (m *Metrics) ListCitiesHandler(w http.ResponseWriter, r *http.Request) {
	cities, err := m.engine.ListCities(r.Context())
	if err != nil {
		m.fail(w, r, "Occured while ListCities()", err)
		return
	}
	m.Response.WriteResultResponse(w, cities)
}

func (m *Metrics) ListTypesHandler(w http.ResponseWriter, r *http.Request) {
	types, err := m.engine.ListMetricTypes(r.Context())
	if err != nil {
		m.fail(w, r, "Occured while ListMetricTypes()", err)
		return
	}
	m.Response.WriteResultResponse(w, types)
}

// AggregateHandler serves GET /metrics/aggregate. days defaults to 7 and
// aggregation to avg when the parameter is absent.
func (m *Metrics) AggregateHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days, err := queryIntOr(r, "days", metrics.DefaultWindowDays)
	if err != nil {
		m.fail(w, r, "While reading days from URL", err)
		return
	}
	aggregation := DefaultAggregation
	if q.Has("aggregation") {
		aggregation = q.Get("aggregation")
	}

	buckets, err := m.engine.Aggregate(r.Context(), q.Get("city"), q.Get("metric_type"), days, aggregation)
	if err != nil {
		m.fail(w, r, "Occured while Aggregate()", err)
		return
	}
	m.Response.WriteResultResponse(w, buckets)
}

func (m *Metrics) LatestHandler(w http.ResponseWriter, r *http.Request) {
	latest, err := m.engine.LatestPerType(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		m.fail(w, r, "Occured while LatestPerType()", err)
		return
	}
	m.Response.WriteResultResponse(w, latest)
}

func (m *Metrics) GetMetricHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		m.fail(w, r, "While reading id from URL", err)
		return
	}
	observation, err := m.engine.Get(r.Context(), id)
	if err != nil {
		m.fail(w, r, "Occured while Get()", err)
		return
	}
	m.Response.WriteResultResponse(w, observation)
}

func (m *Metrics) RecordMetricHandler(w http.ResponseWriter, r *http.Request) {
	var req RecordMetricRequest
	if err := decodeBody(r, &req); err != nil {
		m.fail(w, r, "Occured while decoding metric body", err)
		return
	}

	o := domain.Observation{
		City:       req.City,
		MetricType: req.MetricType,
		Value:      *req.Value,
		Unit:       req.Unit,
		Source:     req.Source,
		Attributes: req.Attributes,
	}
	if req.Timestamp != nil {
		o.Timestamp = *req.Timestamp
	}

	saved, err := m.engine.Record(r.Context(), o)
	if err != nil {
		m.fail(w, r, "Occured while Record()", err)
		return
	}
	m.logger.Debug("Observation recorded", zap.Int64("id", saved.ID), zap.String("city", saved.City), zap.String("metric_type", saved.MetricType))
	m.Response.WriteResultResponseWithStatusCode(w, saved, http.StatusCreated)
}

// logFailure logs client errors at warn and everything else at error.
func logFailure(logger *util.ServiceLogger, r *http.Request, msg string, err error) {
	status := StatusCode(err)
	fields := []zap.Field{
		zap.String("request_id", util.RequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error(msg, fields...)
		return
	}
	logger.Warn(msg, fields...)
}
