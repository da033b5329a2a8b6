package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medtrail/consent-api/internal/handler"
	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/verification"
)

type Handler struct {
	service *verification.Service
}

func NewHandler(service *verification.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	codes := r.Group("/verification-codes")
	{
		codes.POST("", h.Issue)
		codes.POST("/verify", h.Verify)
	}
}

// Issue requests a new code. The plaintext is delivered out of band and never
// appears in the response.
func (h *Handler) Issue(c *gin.Context) {
	var req model.IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if _, err := h.service.Issue(c.Request.Context(), req.SubjectID, req.TargetValue); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{
		"delivered_to": req.TargetValue,
	}))
}

func (h *Handler) Verify(c *gin.Context) {
	var req model.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.Verify(c.Request.Context(), req.SubjectID, req.TargetValue, req.Code); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"verified": true,
	}))
}
