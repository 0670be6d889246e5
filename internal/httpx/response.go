// Package httpx holds the response envelope, request binding and middleware
// shared by every handler.
package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
)

type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Errors     any         `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Timestamp: now()})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data, Timestamp: now()})
}

func Paginated(c *gin.Context, message string, data any, p Pagination) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Pagination: &p, Timestamp: now()})
}

// Fail aborts the chain with an error envelope.
func Fail(c *gin.Context, status int, message string, errs any) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Errors: errs, Timestamp: now()})
}

// Error maps err to a status code. Unknown errors become a 500 and are
// recorded on the context so the request logger reports them.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		Fail(c, status, "Internal server error", nil)
		return
	}
	msg, ok := apperr.Message(err)
	if !ok {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, Envelope{
		Success:   false,
		Message:   msg,
		Data:      apperr.Details(err),
		Timestamp: now(),
	})
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NoRoute answers unknown routes with JSON instead of gin's plain text.
func NoRoute(c *gin.Context) {
	Fail(c, http.StatusNotFound, "Route "+c.Request.Method+" "+c.Request.URL.Path+" not found", nil)
}
