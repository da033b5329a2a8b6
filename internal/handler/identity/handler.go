package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/handler"
	"github.com/medtrail/consent-api/internal/middleware"
	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/bulk"
	"github.com/medtrail/consent-api/internal/service/identity"
)

type Handler struct {
	service *identity.Service
	bulkSvc *bulk.Service
}

func NewHandler(service *identity.Service, bulkSvc *bulk.Service) *Handler {
	return &Handler{
		service: service,
		bulkSvc: bulkSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	identities := r.Group("/identities")
	{
		identities.GET("", h.List)
		identities.GET("/:id", h.Get)
		identities.PATCH("/:id/status", h.UpdateStatus)
		identities.PATCH("/:id/verification", h.UpdateVerification)
		identities.POST("/bulk", h.BulkApply)
	}
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid identity id"))
		return
	}

	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) List(c *gin.Context) {
	var filter model.IdentityFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	identities, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(identities))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid identity id"))
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	result, err := h.service.SetStatus(c.Request.Context(), id, req.Status, actorID, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) UpdateVerification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid identity id"))
		return
	}

	var req model.UpdateVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	result, err := h.service.SetVerified(c.Request.Context(), id, *req.Verified, actorID, req.Notes)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) BulkApply(c *gin.Context) {
	var req model.BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing actor"))
		return
	}

	result, err := h.bulkSvc.Apply(c.Request.Context(), &req, actorID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
