package consent

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/handler"
	"github.com/medtrail/consent-api/internal/middleware"
	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/consent"
)

type Handler struct {
	service *consent.Service
}

func NewHandler(service *consent.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consents := r.Group("/consents")
	{
		consents.POST("", h.Request)
		consents.GET("", h.List)
		consents.GET("/:id", h.Get)
		consents.POST("/:id/approve", h.Approve)
		consents.POST("/:id/revoke", h.Revoke)
	}
}

func (h *Handler) Request(c *gin.Context) {
	var req model.CreateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	grant, err := h.service.Request(c.Request.Context(), req.PatientID, req.ProviderID, req.ExpiresAt, actorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(grant))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid consent grant id"))
		return
	}

	grant, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(grant))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.ConsentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	grants, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(grants))
}

func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

func (h *Handler) Revoke(c *gin.Context) {
	h.transition(c, h.service.Revoke)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, grantID, actorID uuid.UUID) (*model.ConsentGrant, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid consent grant id"))
		return
	}

	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	grant, err := fn(c.Request.Context(), id, actorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(grant))
}
