package api

import (
	"context"
	"net/http"
	"strings"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/http/middleware"
	xlogger "StockWatch/pkg/logger"
	"StockWatch/pkg/util"

	"github.com/labstack/echo/v4"
)

// StockService is the registry surface the stock endpoints need.
type StockService interface {
	List(ctx context.Context) map[string]models.StockView
	AddAndCheck(ctx context.Context, tickers ...string) map[string]models.StockView
	Remove(ctx context.Context, raw string) (bool, error)
}

// StocksEchoHandler serves the tracked-ticker endpoints.
type StocksEchoHandler struct {
	logger *xlogger.Logger
	stocks StockService
	limit  middleware.AllowFunc
	check  echo.HandlerFunc // rate limited Check
}

func NewStocksEchoHandler(logger *xlogger.Logger, stocks StockService, limit middleware.AllowFunc) *StocksEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &StocksEchoHandler{logger: logger, stocks: stocks, limit: limit}
	h.check = middleware.RateLimit(limit)(h.Check)
	return h
}

func (h *StocksEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.Health)
	g.GET("/stocks", h.List)
	g.GET("/stocks/check", h.check)
	g.POST("/stocks", h.Add, middleware.RateLimit(h.limit))
	g.DELETE("/stocks/:ticker", h.Remove)
}

func (h *StocksEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, xhttp.MessageBody{Message: "ok"})
}

// List returns every tracked stock. With a tickers query it behaves as Check,
// so /api/stocks?tickers=AAPL,MSFT keeps working.
func (h *StocksEchoHandler) List(c echo.Context) error {
	if c.QueryParams().Has("tickers") {
		return h.check(c)
	}
	return xhttp.SuccessResponse(c, h.stocks.List(c.Request().Context()))
}

// Add tracks the posted ticker (or tickers) and returns their fresh views.
func (h *StocksEchoHandler) Add(c echo.Context) error {
	req := &models.AddStockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}

	tickers := req.Tickers
	if t := strings.TrimSpace(req.Ticker); t != "" {
		tickers = append([]string{t}, tickers...)
	}
	if len(tickers) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}

	res := h.stocks.AddAndCheck(c.Request().Context(), tickers...)
	h.logFailures("add", res)
	return xhttp.SuccessResponse(c, res)
}

// Check is the query-string form of Add: /api/stocks/check?tickers=AAPL,MSFT.
func (h *StocksEchoHandler) Check(c echo.Context) error {
	req := &models.CheckStocksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.AppErrorResponse(c, verr)
	}
	tickers := util.SplitCSV(req.Tickers)
	if len(tickers) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("tickers is required"))
	}

	res := h.stocks.AddAndCheck(c.Request().Context(), tickers...)
	h.logFailures("check", res)
	return xhttp.SuccessResponse(c, res)
}

func (h *StocksEchoHandler) Remove(c echo.Context) error {
	req := &models.RemoveStockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.DataResponse(c, verr.Status, removeResponse{Removed: false, Error: verr.Message})
	}

	removed, err := h.stocks.Remove(c.Request().Context(), req.Ticker)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("remove ticker failed", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		}
		return xhttp.DataResponse(c, appErr.Status, removeResponse{Removed: false, Error: appErr.Message})
	}
	return xhttp.SuccessResponse(c, removeResponse{Removed: removed})
}

func (h *StocksEchoHandler) logFailures(op string, res map[string]models.StockView) {
	for ticker, v := range res {
		if v.Failed() {
			h.logger.Warn("stock "+op+" failed", xlogger.String("ticker", ticker), xlogger.String("reason", v.Error))
		}
	}
}

type removeResponse struct {
	Removed bool   `json:"removed"`
	Error   string `json:"error,omitempty"`
}
