package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medtrail/consent-api/internal/handler"
	"github.com/medtrail/consent-api/internal/model"
	"github.com/medtrail/consent-api/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	logs := r.Group("/audit")
	{
		logs.GET("/entries", h.ListEntries)
		logs.GET("/entries/subject/:id", h.ListBySubject)
		logs.GET("/entries/actor/:id", h.ListByActor)
	}
}

func (h *Handler) ListEntries(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) ListBySubject(c *gin.Context) {
	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid subject id"))
		return
	}

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	filter.SubjectID = &subjectID

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) ListByActor(c *gin.Context) {
	actorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid actor id"))
		return
	}

	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	filter.ActorID = &actorID

	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(entries))
}

func (h *Handler) parseFilter(c *gin.Context) (*model.AuditFilter, bool) {
	filter := &model.AuditFilter{
		Action: c.Query("action"),
	}

	if v := c.Query("subject_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid subject_id"))
			return nil, false
		}
		filter.SubjectID = &id
	}

	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid actor_id"))
			return nil, false
		}
		filter.ActorID = &id
	}

	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid since timestamp"))
			return nil, false
		}
		filter.Since = &t
	}

	if v := c.Query("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid until timestamp"))
			return nil, false
		}
		filter.Until = &t
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid limit"))
			return nil, false
		}
		filter.Limit = limit
	}

	return filter, true
}
