package api

import (
	stderrors "errors"
	"net/http"

	"planted-staging/internal/model"
	"planted-staging/pkg/errors"

	"github.com/gin-gonic/gin"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type envelope struct {
	Status     string            `json:"status"`
	Data       interface{}       `json:"data,omitempty"`
	Message    string            `json:"message,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
}

func respond(c *gin.Context, code int, data interface{}) {
	c.JSON(code, envelope{Status: statusSuccess, Data: data})
}

func respondPage(c *gin.Context, data interface{}, p model.Pagination) {
	c.JSON(http.StatusOK, envelope{Status: statusSuccess, Data: data, Pagination: &p})
}

func respondMessage(c *gin.Context, code int, message string) {
	c.JSON(code, envelope{Status: statusSuccess, Message: message})
}

func errorStatus(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrConflict), stderrors.Is(err, errors.ErrLockTimeout):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, errors.ErrInvalidInput), stderrors.Is(err, errors.ErrInvalidFileFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := errorStatus(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		message = "internal server error"
	}
	c.AbortWithStatusJSON(code, envelope{Status: statusError, Message: message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{Status: statusError, Message: message})
}
