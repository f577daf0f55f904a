package api

import (
	"context"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/http/middleware"
	xlogger "StockWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recommender runs one recommendation dispatch.
type Recommender interface {
	Dispatch(ctx context.Context) (*models.RecommendationRun, error)
}

type RecommendEchoHandler struct {
	logger      *xlogger.Logger
	recommender Recommender
	limit       middleware.AllowFunc
}

func NewRecommendEchoHandler(logger *xlogger.Logger, recommender Recommender, limit middleware.AllowFunc) *RecommendEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RecommendEchoHandler{logger: logger, recommender: recommender, limit: limit}
}

func (h *RecommendEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.Group("/api").POST("/recommend", h.Recommend, middleware.RateLimit(h.limit))
}

// Recommend answers {"odeslano": [...]}; an empty list means nothing qualified.
func (h *RecommendEchoHandler) Recommend(c echo.Context) error {
	run, err := h.recommender.Dispatch(c.Request().Context())
	if err != nil {
		h.logger.Error("recommend dispatch failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, recommendResponse{Sent: run.Sent})
}

type recommendResponse struct {
	Sent []string `json:"odeslano"`
}
