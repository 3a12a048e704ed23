package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/eventflow/internal/message/application"
	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

// MessageHandler encapsula los endpoints HTTP relacionados con Message
type MessageHandler struct {
	service *application.MessageService
}

func NewMessageHandler(service *application.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// actorFrom construye el actor desde las cabeceras. El middleware de auth
// real queda fuera: aquí solo se exige que el contexto no sea nulo.
func actorFrom(c *gin.Context) sharedDomain.Actor {
	return sharedDomain.Actor{
		SubjectID: c.GetHeader("X-Subject-Id"),
		Tenant:    c.GetHeader("X-Tenant"),
	}
}

// ---------------- Handlers ----------------

// CreateMessage endpoint POST /messages
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req struct {
		Channel       string                 `json:"channel" binding:"required"`
		TemplateID    string                 `json:"template_id"`
		Content       string                 `json:"content"`
		Payload       map[string]interface{} `json:"payload"`
		ScheduledAt   *time.Time             `json:"scheduled_at"` // RFC3339
		Priority      *int                   `json:"priority"`
		CorrelationID string                 `json:"correlation_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dto, err := h.service.CreateMessage(c.Request.Context(), actorFrom(c), application.CreateMessageParams{
		Channel:       req.Channel,
		TemplateID:    req.TemplateID,
		Content:       req.Content,
		Payload:       req.Payload,
		ScheduledAt:   req.ScheduledAt,
		Priority:      req.Priority,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var verr *sharedDomain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, sharedDomain.ErrActorRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto)
}

// GetMessage endpoint GET /messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	dto, err := h.service.GetMessage(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		if errors.Is(err, sharedDomain.ErrAggregateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto)
}

// CancelMessage endpoint DELETE /messages/:id
func (h *MessageHandler) CancelMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.service.CancelMessage(c.Request.Context(), actorFrom(c), id); err != nil {
		if errors.Is(err, sharedDomain.ErrAggregateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		var ierr *sharedDomain.InvariantError
		if errors.As(err, &ierr) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
