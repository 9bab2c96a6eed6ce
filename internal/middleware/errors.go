package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// problemDetails represents an RFC 7807 Problem Details response
type problemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error types
const (
	errorTypeUnauthorized = "https://proyecty.com/errors/unauthorized"
	errorTypeBadRequest   = "https://proyecty.com/errors/bad-request"
	errorTypeConflict     = "https://proyecty.com/errors/conflict"
	errorTypeUnavailable  = "https://proyecty.com/errors/service-unavailable"
)

// unauthorizedError creates an unauthorized error response
func unauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, problemDetails{
		Type:     errorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// badRequestError creates a bad request error response
func badRequestError(c echo.Context, detail string) error {
	return c.JSON(http.StatusBadRequest, problemDetails{
		Type:     errorTypeBadRequest,
		Title:    "Bad Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// conflictError creates a conflict error response
func conflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, problemDetails{
		Type:     errorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// serviceUnavailableError creates a service unavailable error response
func serviceUnavailableError(c echo.Context, detail string) error {
	return c.JSON(http.StatusServiceUnavailable, problemDetails{
		Type:     errorTypeUnavailable,
		Title:    "Service Unavailable",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}
