package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/learnsmart/tutor/internal/model"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Message: message})
}

// badRequest wraps payload problems found before the engine runs.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

// statusOf maps engine errors to HTTP statuses.
func statusOf(err error) int {
	var br *badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest
	}
	switch model.Kind(err) {
	case model.KindInsufficientCatalog:
		return http.StatusUnprocessableEntity
	case model.KindNoCandidateItem:
		return http.StatusNotFound
	case model.KindUndeterminedCorrectness:
		return http.StatusConflict
	case model.KindInvalidReference:
		return http.StatusBadRequest
	case model.KindGeneratorUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abort writes err as an envelope. Internal errors are not echoed.
func (s *Server) abort(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	fail(c, status, msg)
}
