package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"FinRank/internal/domain/models"
	"FinRank/internal/service/metrics"
	"FinRank/internal/service/ratelimit"
	xhttp "FinRank/pkg/http"
	xlogger "FinRank/pkg/logger"
)

// RecommendationService is what the HTTP layer needs from the use case.
type RecommendationService interface {
	Generate(ctx context.Context, p models.RiskProfile) (*models.RecommendationSet, error)
	Segments() []models.SegmentStatus
	Universe(ctx context.Context) models.StockUniverse
	Category(ctx context.Context, symbol string) models.Segment
	StartRetrain(force bool, requestedBy string) (uuid.UUID, error)
}

// RecommendationsEchoHandler serves the recommendation API.
type RecommendationsEchoHandler struct {
	logger *xlogger.Logger
	svc    RecommendationService
	rl     *ratelimit.Limiter
}

func NewRecommendationsEchoHandler(logger *xlogger.Logger, svc RecommendationService) *RecommendationsEchoHandler {
	metrics.Register()
	return &RecommendationsEchoHandler{logger: logger, svc: svc, rl: ratelimit.New(10 * time.Minute)}
}

func (h *RecommendationsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/recommendations", h.Recommend)
	g.GET("/segments", h.Segments)
	g.GET("/universe", h.Universe)
	g.GET("/universe/:symbol", h.Category)
	g.POST("/admin/retrain", h.Retrain)
}

func (h *RecommendationsEchoHandler) Recommend(c echo.Context) error {
	const endpoint = "recommendations"
	defer observe(endpoint, time.Now())
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 10, 2) {
		return h.limited(c, endpoint)
	}

	req := &models.RecommendationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	set, err := h.svc.Generate(c.Request().Context(), req.Profile())
	if err != nil {
		h.logger.Error("recommendations usecase error", xlogger.Error(err))
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, set)
}

func (h *RecommendationsEchoHandler) Segments(c echo.Context) error {
	defer observe("segments", time.Now())
	return xhttp.SuccessResponse(c, h.svc.Segments())
}

func (h *RecommendationsEchoHandler) Universe(c echo.Context) error {
	defer observe("universe", time.Now())
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, h.svc.Universe(c.Request().Context()))
}

// Category reports which segment lists a symbol.
func (h *RecommendationsEchoHandler) Category(c echo.Context) error {
	const endpoint = "universe_category"
	defer observe(endpoint, time.Now())
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	seg := h.svc.Category(c.Request().Context(), symbol)
	if seg == models.UnknownSegment {
		metrics.APIErrors.WithLabelValues(endpoint, "ERR_NOT_FOUND").Inc()
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("symbol %q is not in the stock universe", symbol))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":  symbol,
		"segment": seg,
	})
}

// Retrain starts a full retrain in the background and answers with its run id.
func (h *RecommendationsEchoHandler) Retrain(c echo.Context) error {
	const endpoint = "admin_retrain"
	defer observe(endpoint, time.Now())
	if !h.rl.Allow(c.RealIP()+":"+endpoint, 1, 1.0/60) {
		return h.limited(c, endpoint)
	}

	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runID, err := h.svc.StartRetrain(req.Force, req.RequestedBy)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	h.logger.Info("retrain requested",
		xlogger.String("run_id", runID.String()),
		xlogger.String("requested_by", req.RequestedBy),
	)
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"run_id": runID,
		"force":  req.Force,
	})
}

func (h *RecommendationsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := mapError(err)
	metrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *RecommendationsEchoHandler) limited(c echo.Context, endpoint string) error {
	metrics.APIRateLimited.WithLabelValues(endpoint).Inc()
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
}

// mapError turns domain errors into API errors.
func mapError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrNotTrained):
		return xhttp.ServiceUnavailableError("ERR_NOT_TRAINED", "models are not trained yet").WithError(err)
	case errors.Is(err, models.ErrNoRecommendations):
		return xhttp.ServiceUnavailableError("ERR_NO_RECOMMENDATIONS", "no recommendations available, models may still be training").WithError(err)
	case errors.Is(err, models.ErrRetrainInProgress):
		return xhttp.ConflictError("a retrain is already running").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("ERR_TIMEOUT", "request timed out").WithError(err)
	default:
		return xhttp.InternalError("failed to generate recommendations").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
