package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"outbreak-platform/internal/models"
	"outbreak-platform/internal/repository"
	"outbreak-platform/pkg/logging"
	"outbreak-platform/pkg/metrics"
)

// RiskReader is the slice of the risk service the handlers consume.
// Satisfied by services.RiskService.
type RiskReader interface {
	GetRiskScore(ctx context.Context, locationID string) (*models.RiskScore, error)
	GetForecast(ctx context.Context, locationID string, days int) ([]models.ForecastPoint, error)
	GetScoreHistory(ctx context.Context, locationID string, days int) ([]models.ScorePoint, error)
	GetGlobalSummary(ctx context.Context) (*models.GlobalSummary, error)
	GetRegionalSummary(ctx context.Context, country string) (*models.RegionalSummary, error)
	ListLocations(ctx context.Context, limit, offset int) ([]*models.Location, int, error)
	GetLocation(ctx context.Context, locationID string) (*models.Location, error)
	HealthCheck(ctx context.Context) error
}

// RiskHandler handles risk API endpoints
type RiskHandler struct {
	riskService      RiskReader
	stalenessWarning time.Duration
	logger           *logging.StructuredLogger
	metrics          *metrics.Collector
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(
	riskService RiskReader,
	stalenessWarning time.Duration,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RiskHandler {
	return &RiskHandler{
		riskService:      riskService,
		stalenessWarning: stalenessWarning,
		logger:           logger,
		metrics:          metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ForecastResponse wraps a location's projected score series
type ForecastResponse struct {
	LocationID  string                 `json:"location_id"`
	Days        int                    `json:"days"`
	GeneratedAt time.Time              `json:"generated_at"`
	Forecast    []models.ForecastPoint `json:"forecast"`
}

// HistoryResponse wraps a location's persisted score series
type HistoryResponse struct {
	LocationID string              `json:"location_id"`
	Days       int                 `json:"days"`
	History    []models.ScorePoint `json:"history"`
}

// GetRiskScore handles GET /api/risk/{location_id}
func (h *RiskHandler) GetRiskScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/risk/{location_id}").Observe(duration.Seconds())
	}()

	locationID := mux.Vars(r)["location_id"]

	score, err := h.riskService.GetRiskScore(ctx, locationID)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.metrics.RecordAPIError("not_found", "/api/risk/{location_id}")
			h.sendError(w, r, "no risk score for location "+locationID, http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_GET_RISK_ERROR] Failed to get risk score", logging.Fields{
			"location_id": locationID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/risk/{location_id}")
		h.sendError(w, r, "failed to retrieve risk score", http.StatusInternalServerError)
		return
	}

	// Scores older than the warning threshold still get served; the
	// header lets clients decide how much to trust them.
	if time.Since(score.ComputedAt) > h.stalenessWarning {
		w.Header().Set("X-Data-Status", "stale")
	}

	h.metrics.RecordAPIRequest("/api/risk/{location_id}", "GET", "200")
	h.sendJSON(w, score, http.StatusOK)
}

// GetForecast handles GET /api/risk/{location_id}/forecast
func (h *RiskHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/risk/{location_id}/forecast").Observe(duration.Seconds())
	}()

	locationID := mux.Vars(r)["location_id"]

	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d < 1 || d > 14 {
			h.sendError(w, r, "invalid days, expected integer between 1 and 14", http.StatusBadRequest)
			return
		}
		days = d
	}

	forecast, err := h.riskService.GetForecast(ctx, locationID, days)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.metrics.RecordAPIError("not_found", "/api/risk/{location_id}/forecast")
			h.sendError(w, r, "no score history to forecast from for location "+locationID, http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_GET_FORECAST_ERROR] Failed to compute forecast", logging.Fields{
			"location_id": locationID,
			"days":        days,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/risk/{location_id}/forecast")
		h.sendError(w, r, "failed to compute forecast", http.StatusInternalServerError)
		return
	}

	response := ForecastResponse{
		LocationID:  locationID,
		Days:        len(forecast),
		GeneratedAt: time.Now().UTC(),
		Forecast:    forecast,
	}

	h.metrics.RecordAPIRequest("/api/risk/{location_id}/forecast", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetScoreHistory handles GET /api/risk/{location_id}/history
func (h *RiskHandler) GetScoreHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/risk/{location_id}/history").Observe(duration.Seconds())
	}()

	locationID := mux.Vars(r)["location_id"]

	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d < 1 || d > 90 {
			h.sendError(w, r, "invalid days, expected integer between 1 and 90", http.StatusBadRequest)
			return
		}
		days = d
	}

	history, err := h.riskService.GetScoreHistory(ctx, locationID, days)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_HISTORY_ERROR] Failed to get score history", logging.Fields{
			"location_id": locationID,
			"days":        days,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/risk/{location_id}/history")
		h.sendError(w, r, "failed to retrieve score history", http.StatusInternalServerError)
		return
	}

	if history == nil {
		history = []models.ScorePoint{}
	}

	response := HistoryResponse{
		LocationID: locationID,
		Days:       days,
		History:    history,
	}

	h.metrics.RecordAPIRequest("/api/risk/{location_id}/history", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetGlobalSummary handles GET /api/risk/summary/global
func (h *RiskHandler) GetGlobalSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/risk/summary/global").Observe(duration.Seconds())
	}()

	summary, err := h.riskService.GetGlobalSummary(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_SUMMARY_ERROR] Failed to get global summary", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/risk/summary/global")
		h.sendError(w, r, "failed to retrieve global summary", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/risk/summary/global", "GET", "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// GetRegionalSummary handles GET /api/risk/summary/regional
func (h *RiskHandler) GetRegionalSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/risk/summary/regional").Observe(duration.Seconds())
	}()

	country := r.URL.Query().Get("country")
	if country == "" {
		h.sendError(w, r, "country query parameter is required", http.StatusBadRequest)
		return
	}

	summary, err := h.riskService.GetRegionalSummary(ctx, country)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.metrics.RecordAPIError("not_found", "/api/risk/summary/regional")
			h.sendError(w, r, "no monitored locations in country "+country, http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_GET_SUMMARY_ERROR] Failed to get regional summary", logging.Fields{
			"country": country,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/risk/summary/regional")
		h.sendError(w, r, "failed to retrieve regional summary", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/risk/summary/regional", "GET", "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// ListLocations handles GET /api/locations
func (h *RiskHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/locations").Observe(duration.Seconds())
	}()

	// Default pagination
	page := 1
	limit := 100

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := (page - 1) * limit

	locations, total, err := h.riskService.ListLocations(ctx, limit, offset)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_LOCATIONS_ERROR] Failed to list locations", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/locations")
		h.sendError(w, r, "failed to retrieve locations", http.StatusInternalServerError)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       locations,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/locations", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetLocation handles GET /api/locations/{location_id}
func (h *RiskHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/locations/{location_id}").Observe(duration.Seconds())
	}()

	locationID := mux.Vars(r)["location_id"]

	location, err := h.riskService.GetLocation(ctx, locationID)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			h.metrics.RecordAPIError("not_found", "/api/locations/{location_id}")
			h.sendError(w, r, "no monitored location "+locationID, http.StatusNotFound)
			return
		}

		h.logger.Error(ctx, "[API_GET_LOCATION_ERROR] Failed to get location", logging.Fields{
			"location_id": locationID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/locations/{location_id}")
		h.sendError(w, r, "failed to retrieve location", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/locations/{location_id}", "GET", "200")
	h.sendJSON(w, location, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *RiskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.riskService.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK_ERROR] Database health check failed", logging.Fields{}, err)
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// sendJSON sends a JSON response
func (h *RiskHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *RiskHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all risk API routes. Fixed paths go first so
// the summary endpoints never fall through to the location pattern.
func (h *RiskHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/risk/summary/global", h.GetGlobalSummary).Methods("GET")
	router.HandleFunc("/api/risk/summary/regional", h.GetRegionalSummary).Methods("GET")
	router.HandleFunc("/api/risk/{location_id}/forecast", h.GetForecast).Methods("GET")
	router.HandleFunc("/api/risk/{location_id}/history", h.GetScoreHistory).Methods("GET")
	router.HandleFunc("/api/risk/{location_id}", h.GetRiskScore).Methods("GET")
	router.HandleFunc("/api/locations", h.ListLocations).Methods("GET")
	router.HandleFunc("/api/locations/{location_id}", h.GetLocation).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
