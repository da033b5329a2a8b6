package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/medtrail/consent-api/pkg/errors"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", apperrors.NewNotFound("identity", nil), http.StatusNotFound},
		{"validation", apperrors.NewValidation("bad input", nil), http.StatusBadRequest},
		{"invalid status", apperrors.NewInvalidStatus("invalid status"), http.StatusBadRequest},
		{"invalid code", apperrors.NewInvalidCode(), http.StatusUnprocessableEntity},
		{"too many attempts", apperrors.NewTooManyAttempts(), http.StatusTooManyRequests},
		{"storage", apperrors.NewStorage(errors.New("down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
