package api

import (
	"errors"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
)

// toAppError maps domain sentinels onto HTTP errors. Unknown errors become a bare 500.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrValidation):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal server error").WithError(err)
	}
}
