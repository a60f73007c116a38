// Package envelope defines the response shape shared by every endpoint:
// {"data": ..., "error": {"code","message"}, "meta": {"page","limit","total"}}.
package envelope

import "github.com/labstack/echo/v4"

// Error codes by failure kind
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION"
	CodeInternal        = "INTERNAL"
)

// Error carries the client-facing failure description
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries pagination details for list responses
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Response is the uniform envelope
type Response struct {
	Data  interface{} `json:"data"`
	Error *Error      `json:"error"`
	Meta  *Meta       `json:"meta,omitempty"`
}

// OK writes a success envelope
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Data: data})
}

// OKPaged writes a success envelope with pagination meta
func OKPaged(c echo.Context, data interface{}, page, limit int, total int64) error {
	return c.JSON(200, Response{
		Data: data,
		Meta: &Meta{Page: page, Limit: limit, Total: total},
	})
}

// Fail writes an error envelope
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Response{Error: &Error{Code: code, Message: message}})
}
