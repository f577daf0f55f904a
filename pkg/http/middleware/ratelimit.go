package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AllowFunc decides whether one more request for key may proceed.
type AllowFunc func(key string) bool

// RateLimit rejects requests with 429 once allow returns false for the client IP.
func RateLimit(allow AllowFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if allow != nil && !allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
