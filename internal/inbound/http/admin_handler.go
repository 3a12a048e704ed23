package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/eventflow/internal/shared/queue"
)

// AdminHandler expone la superficie operativa de las colas: pausa, reanudación,
// métricas y trabajos fallidos. No toca invariantes de entrega.
type AdminHandler struct {
	queue queue.Queue
}

func NewAdminHandler(q queue.Queue) *AdminHandler {
	return &AdminHandler{queue: q}
}

// QueueStats endpoint GET /admin/queues/:name/stats
func (h *AdminHandler) QueueStats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PauseQueue endpoint POST /admin/queues/:name/pause
func (h *AdminHandler) PauseQueue(c *gin.Context) {
	h.queue.Pause(c.Param("name"))
	c.JSON(http.StatusOK, gin.H{"queue": c.Param("name"), "paused": true})
}

// ResumeQueue endpoint POST /admin/queues/:name/resume
func (h *AdminHandler) ResumeQueue(c *gin.Context) {
	h.queue.Resume(c.Param("name"))
	c.JSON(http.StatusOK, gin.H{"queue": c.Param("name"), "paused": false})
}

// FailedJobs endpoint GET /admin/queues/:name/failed
func (h *AdminHandler) FailedJobs(c *gin.Context) {
	jobs, err := h.queue.FailedJobs(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": c.Param("name"), "jobs": jobs})
}

// InjectJob endpoint POST /admin/queues/:name/jobs
// Inyección manual de un job, útil para re-lanzar entregas fallidas.
func (h *AdminHandler) InjectJob(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		AggregateID   string `json:"aggregate_id" binding:"required"`
		Tenant        string `json:"tenant" binding:"required"`
		ActorID       string `json:"actor_id"`
		CorrelationID string `json:"correlation_id"`
		Priority      *int   `json:"priority"`
		DelaySeconds  int    `json:"delay_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := queue.PriorityDefault
	if req.Priority != nil {
		priority = *req.Priority
	}

	job := queue.Job{
		ID:    uuid.New(),
		Queue: c.Param("name"),
		Name:  req.Name,
		Data: queue.JobData{
			AggregateID:   req.AggregateID,
			Tenant:        req.Tenant,
			ActorID:       req.ActorID,
			CorrelationID: req.CorrelationID,
		},
		Priority:   priority,
		Delay:      time.Duration(req.DelaySeconds) * time.Second,
		Attempts:   queue.DefaultAttempts,
		Backoff:    queue.Backoff{Type: "exponential", Delay: queue.BackoffBase},
		EnqueuedAt: time.Now().UTC(),
	}

	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

func RegisterAdminRoutes(r *gin.Engine, handler *AdminHandler) {
	admin := r.Group("/admin/queues")
	{
		admin.GET("/:name/stats", handler.QueueStats)
		admin.POST("/:name/pause", handler.PauseQueue)
		admin.POST("/:name/resume", handler.ResumeQueue)
		admin.GET("/:name/failed", handler.FailedJobs)
		admin.POST("/:name/jobs", handler.InjectJob)
	}
}
