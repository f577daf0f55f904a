package api

import (
	"context"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/http/middleware"
	xlogger "StockWatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// NewsService classifies rated news against a sell threshold.
type NewsService interface {
	Evaluate(ctx context.Context, apiURL string, minRatingForSell int) ([]models.NewsItem, error)
}

type NewsEchoHandler struct {
	logger *xlogger.Logger
	news   NewsService
	limit  middleware.AllowFunc
}

func NewNewsEchoHandler(logger *xlogger.Logger, news NewsService, limit middleware.AllowFunc) *NewsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &NewsEchoHandler{logger: logger, news: news, limit: limit}
}

func (h *NewsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.Group("/api").POST("/news/evaluate", h.Evaluate, middleware.RateLimit(h.limit))
}

func (h *NewsEchoHandler) Evaluate(c echo.Context) error {
	req := &models.NewsEvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	items, err := h.news.Evaluate(c.Request().Context(), req.APIURL, *req.MinRatingForSell)
	if err != nil {
		h.logger.Warn("news evaluate failed", xlogger.String("api_url", req.APIURL), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, newsResponse{Data: items})
}

type newsResponse struct {
	Data []models.NewsItem `json:"data"`
}
