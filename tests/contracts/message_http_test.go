package contracts

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	messageApp "github.com/davicafu/eventflow/internal/message/application"
	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
	messageHttp "github.com/davicafu/eventflow/internal/message/infra/inbound/http"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
	"github.com/davicafu/eventflow/internal/shared/repository"
	"github.com/davicafu/eventflow/tests/mocks"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	repo := repository.New(eventlog.NewMemoryLog(),
		messageDomain.BoundedContext, messageDomain.AggregateType, messageDomain.AggregateVersion,
		func(id string) repository.EventSourced { return messageDomain.NewEmptyMessage(id) },
		0, zap.NewNop())
	service := messageApp.NewMessageService(repo, &mocks.ScriptedTransport{}, nil, mocks.NewDummyCache(), zap.NewNop())

	r := gin.New()
	messageHttp.RegisterMessageRoutes(r, messageHttp.NewMessageHandler(service))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Subject-Id", "user-1")
	req.Header.Set("X-Tenant", "acme")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// TestMessageHTTP_Contract recorre el contrato completo: crear, leer, cancelar.
func TestMessageHTTP_Contract(t *testing.T) {
	r := newTestRouter()

	// Crear
	rec := doJSON(t, r, http.MethodPost, "/messages/", map[string]interface{}{
		"channel": "#alerts",
		"content": "hola",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created messageDomain.MessageDTO
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "acme", created.Tenant)
	assert.Equal(t, "PENDING", string(created.Status))
	assert.NotEmpty(t, created.CorrelationID)

	// Leer
	rec = doJSON(t, r, http.MethodGet, "/messages/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var fetched messageDomain.MessageDTO
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "hola", fetched.Content)

	// Cancelar
	rec = doJSON(t, r, http.MethodDelete, "/messages/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMessageHTTP_Validacion(t *testing.T) {
	r := newTestRouter()

	// sin canal: binding required
	rec := doJSON(t, r, http.MethodPost, "/messages/", map[string]interface{}{
		"content": "sin canal",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// sin contenido ni plantilla: validación de dominio
	rec = doJSON(t, r, http.MethodPost, "/messages/", map[string]interface{}{
		"channel": "#alerts",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content")
}

func TestMessageHTTP_SinActor(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/messages/",
		bytes.NewBufferString(`{"channel":"#alerts","content":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	// sin cabeceras X-Subject-Id / X-Tenant
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageHTTP_NoEncontrado(t *testing.T) {
	r := newTestRouter()

	rec := doJSON(t, r, http.MethodGet, "/messages/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "message not found")
}

func TestMessageHTTP_IdInvalido(t *testing.T) {
	r := newTestRouter()

	rec := doJSON(t, r, http.MethodGet, "/messages/no-es-un-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
