package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps the application error taxonomy to HTTP statuses.
func RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrValidation, apperrors.ErrInvalidStatus:
		status = http.StatusBadRequest
	case apperrors.ErrInvalidCode:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrTooManyAttempts:
		status = http.StatusTooManyRequests
	case apperrors.ErrStorage:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, NewErrorResponse(err.Error()))
}
