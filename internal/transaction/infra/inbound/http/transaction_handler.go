package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/transaction/application"
)

// TransactionHandler encapsula los endpoints HTTP relacionados con Transaction
type TransactionHandler struct {
	service *application.TransactionService
}

func NewTransactionHandler(service *application.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

func actorFrom(c *gin.Context) sharedDomain.Actor {
	return sharedDomain.Actor{
		SubjectID: c.GetHeader("X-Subject-Id"),
		Tenant:    c.GetHeader("X-Tenant"),
	}
}

// CreateTransaction endpoint POST /transactions
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req struct {
		FromAccount   string     `json:"from_account" binding:"required"`
		ToAccount     string     `json:"to_account" binding:"required"`
		Amount        string     `json:"amount" binding:"required"`
		Currency      string     `json:"currency" binding:"required"`
		ScheduledAt   *time.Time `json:"scheduled_at"`
		Priority      *int       `json:"priority"`
		CorrelationID string     `json:"correlation_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	dto, err := h.service.CreateTransaction(c.Request.Context(), actorFrom(c), application.CreateTransactionParams{
		FromAccount:   req.FromAccount,
		ToAccount:     req.ToAccount,
		Amount:        amount,
		Currency:      req.Currency,
		ScheduledAt:   req.ScheduledAt,
		Priority:      req.Priority,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		var verr *sharedDomain.ValidationError
		var ierr *sharedDomain.InvariantError
		if errors.As(err, &verr) || errors.As(err, &ierr) || errors.Is(err, sharedDomain.ErrActorRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, dto)
}

// GetTransaction endpoint GET /transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	dto, err := h.service.GetTransaction(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		if errors.Is(err, sharedDomain.ErrAggregateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto)
}

// CancelTransaction endpoint DELETE /transactions/:id
func (h *TransactionHandler) CancelTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	if err := h.service.CancelTransaction(c.Request.Context(), actorFrom(c), id); err != nil {
		if errors.Is(err, sharedDomain.ErrAggregateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
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
