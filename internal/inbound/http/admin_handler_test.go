package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/davicafu/eventflow/internal/shared/queue"
)

func newAdminRouter(q queue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r, NewAdminHandler(q))
	return r
}

func TestAdmin_PauseResumeStats(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())
	r := newAdminRouter(q)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/queues/message-delivery/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues/message-delivery/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats queue.Stats
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.True(t, stats.Paused)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/queues/message-delivery/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	stats, err := q.Stats(context.Background(), "message-delivery")
	assert.NoError(t, err)
	assert.False(t, stats.Paused)
}

func TestAdmin_InjectJob(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())
	r := newAdminRouter(q)
	q.Pause("message-delivery") // retenemos el job para poder contarlo

	body := bytes.NewBufferString(`{
		"name": "message.deliver",
		"aggregate_id": "m1",
		"tenant": "acme"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/queues/message-delivery/jobs", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	stats, _ := q.Stats(context.Background(), "message-delivery")
	assert.Equal(t, int64(1), stats.Pending)
}

func TestAdmin_InjectJobInvalido(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())
	r := newAdminRouter(q)

	req := httptest.NewRequest(http.MethodPost, "/admin/queues/x/jobs", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_FailedJobsVacio(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())
	r := newAdminRouter(q)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/queues/message-delivery/failed", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobs"`)
}
