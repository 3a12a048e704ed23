package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

var testActor = sharedDomain.Actor{SubjectID: "user-1", Tenant: "acme"}

// TestNewMessage_Pending valida la creación inmediata: nace PENDING y emite
// exactamente un evento cuyo snapshot ya refleja ese estado.
func TestNewMessage_Pending(t *testing.T) {
	// Act
	msg, err := NewMessage(testActor, NewMessageParams{
		Channel: "#alerts",
		Content: "hola",
	})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusPending, msg.Status())
	assert.Equal(t, "acme", msg.AggregateTenant())
	assert.NotEmpty(t, msg.CorrelationID(), "sin correlación explícita se genera una")

	events := msg.Uncommitted()
	assert.Len(t, events, 1, "la creación emite exactamente un evento")
	assert.Equal(t, MessageCreated, events[0].Type)
	assert.Contains(t, string(events[0].Props), "PENDING")
}

// TestNewMessage_Scheduled: con programación futura el agregado nace SCHEDULED.
func TestNewMessage_Scheduled(t *testing.T) {
	future := time.Now().UTC().Add(1 * time.Hour)

	msg, err := NewMessage(testActor, NewMessageParams{
		Channel:     "#alerts",
		Content:     "más tarde",
		ScheduledAt: &future,
	})

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusScheduled, msg.Status())
	assert.Len(t, msg.Uncommitted(), 1)
}

func TestNewMessage_Validacion(t *testing.T) {
	// Arrange: sin canal
	_, err := NewMessage(testActor, NewMessageParams{Content: "x"})
	var verr *sharedDomain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "channel", verr.Field)

	// sin contenido
	_, err = NewMessage(testActor, NewMessageParams{Channel: "#x"})
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestNewMessage_ActorObligatorio(t *testing.T) {
	_, err := NewMessage(sharedDomain.Actor{}, NewMessageParams{Channel: "#x", Content: "y"})
	assert.ErrorIs(t, err, sharedDomain.ErrActorRequired)
}

// entregado deja el mensaje en SUCCESS pasando por PROCESSING, como hace el
// ejecutor de entrega.
func entregado(msg *Message) {
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = msg.Complete(testActor, nil)
}

// TestMessage_CaminoFeliz: PENDING → PROCESSING → SUCCESS; en el stream queda
// exactamente un Created y un Completed.
func TestMessage_CaminoFeliz(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})

	assert.NoError(t, msg.UpdateStatus(testActor, sharedDomain.StatusProcessing))
	err := msg.Complete(testActor, nil)

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusSuccess, msg.Status())
	events := msg.Uncommitted()
	assert.Len(t, events, 3)
	assert.Equal(t, MessageCreated, events[0].Type)
	assert.Equal(t, MessageStatusUpdated, events[1].Type)
	assert.Equal(t, MessageCompleted, events[2].Type)
}

// TestMessage_CicloDeVidaRespetaMaquina: las transiciones de ciclo de vida
// pasan por la máquina de estados: desde PENDING no se salta a SUCCESS,
// RETRYING ni FAILED sin pasar por PROCESSING.
func TestMessage_CicloDeVidaRespetaMaquina(t *testing.T) {
	var ierr *sharedDomain.InvariantError

	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	assert.ErrorAs(t, msg.Complete(testActor, nil), &ierr)
	assert.Equal(t, sharedDomain.StatusPending, msg.Status(), "el agregado no cambia si la transición falla")

	assert.ErrorAs(t, msg.MarkForRetry(testActor, "timeout", nil), &ierr)
	assert.ErrorAs(t, msg.MarkAsFailed(testActor, "boom"), &ierr)
	assert.Len(t, msg.Uncommitted(), 1, "ningún evento más allá del Created")
}

// TestMessage_CompleteIdempotente: re-completar un mensaje ya entregado es un
// no-op sin evento nuevo.
func TestMessage_CompleteIdempotente(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	entregado(msg)
	before := len(msg.Uncommitted())

	err := msg.Complete(testActor, nil)

	assert.NoError(t, err)
	assert.Len(t, msg.Uncommitted(), before, "sin evento adicional")
}

// TestMessage_UpdateStatusEco: el mismo estado otra vez no emite evento.
func TestMessage_UpdateStatusEco(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	before := len(msg.Uncommitted())

	err := msg.UpdateStatus(testActor, sharedDomain.StatusPending)

	assert.NoError(t, err)
	assert.Len(t, msg.Uncommitted(), before)
}

func TestMessage_UpdateStatusInvalido(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})

	err := msg.UpdateStatus(testActor, sharedDomain.StatusSuccess)

	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, err, &ierr, "PENDING → SUCCESS no es una transición válida")
	assert.Equal(t, sharedDomain.StatusPending, msg.Status(), "el agregado no cambia si la transición falla")
}

// TestMessage_MarkForRetry: incrementa el contador exactamente en 1 y fija la
// próxima ventana de entrega.
func TestMessage_MarkForRetry(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	next := time.Now().UTC().Add(30 * time.Second)

	err := msg.MarkForRetry(testActor, "timeout", &next)

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusRetrying, msg.Status())
	assert.Equal(t, 1, msg.RetryCount())
	assert.Equal(t, "timeout", msg.FailureReason())
	assert.Equal(t, next, *msg.ScheduledAt())

	// segundo reintento: el contador sube de 1 en 1
	err = msg.MarkForRetry(testActor, "timeout again", nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, msg.RetryCount())
	assert.True(t, msg.ScheduledAt().After(time.Now().UTC()), "sin fecha explícita, por defecto ahora + 60s")
}

func TestMessage_MarkAsFailed(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)

	err := msg.MarkAsFailed(testActor, "unknown channel")

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusFailed, msg.Status())
	assert.Equal(t, "unknown channel", msg.FailureReason())

	// terminal: no se puede reintentar después
	err = msg.MarkForRetry(testActor, "x", nil)
	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, err, &ierr)
}

// TestMessage_CompleteLimpiaFallo: la transición con éxito limpia failureReason.
func TestMessage_CompleteLimpiaFallo(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = msg.MarkForRetry(testActor, "timeout", nil)
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)

	err := msg.Complete(testActor, nil)

	assert.NoError(t, err)
	assert.Equal(t, sharedDomain.StatusSuccess, msg.Status())
	assert.Empty(t, msg.FailureReason())
	assert.Equal(t, 1, msg.RetryCount(), "el contador de reintentos se conserva")
}

func TestMessage_Cancel(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})

	assert.NoError(t, msg.Cancel(testActor))
	assert.Equal(t, sharedDomain.StatusCancelled, msg.Status())

	// idempotente
	assert.NoError(t, msg.Cancel(testActor))

	// desde SUCCESS no se puede cancelar
	done, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	entregado(done)
	var ierr *sharedDomain.InvariantError
	assert.ErrorAs(t, done.Cancel(testActor), &ierr)
}

func TestMessage_UpdateCorrelationID(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y", CorrelationID: "corr-1"})
	before := len(msg.Uncommitted())

	// mismo valor: no-op
	assert.NoError(t, msg.UpdateCorrelationID(testActor, "corr-1", true))
	assert.Len(t, msg.Uncommitted(), before)

	// valor nuevo sin evento (hidratación)
	assert.NoError(t, msg.UpdateCorrelationID(testActor, "corr-2", false))
	assert.Equal(t, "corr-2", msg.CorrelationID())
	assert.Len(t, msg.Uncommitted(), before)

	// valor nuevo con evento
	assert.NoError(t, msg.UpdateCorrelationID(testActor, "corr-3", true))
	assert.Len(t, msg.Uncommitted(), before+1)
}

// TestMessage_Rehidratacion: el left-fold de los eventos reconstruye el mismo
// estado observable, y basta el último evento porque Props es snapshot completo.
func TestMessage_Rehidratacion(t *testing.T) {
	// Arrange: un ciclo de vida con reintento
	original, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})
	_ = original.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = original.MarkForRetry(testActor, "timeout", nil)
	entregado(original)

	// Act: fold completo
	rebuilt := NewEmptyMessage(original.AggregateID())
	for _, evt := range original.Uncommitted() {
		assert.NoError(t, rebuilt.Apply(evt))
	}

	// Assert
	assert.Equal(t, original.DTO(), rebuilt.DTO())
	assert.Empty(t, rebuilt.Uncommitted(), "Apply no emite eventos")

	// Act: solo el último evento
	events := original.Uncommitted()
	last := NewEmptyMessage(original.AggregateID())
	assert.NoError(t, last.Apply(events[len(events)-1]))
	assert.Equal(t, original.DTO(), last.DTO())
}

func TestMessage_SnapshotRoundTrip(t *testing.T) {
	msg, _ := NewMessage(testActor, NewMessageParams{Channel: "#x", Content: "y"})

	state, err := msg.SnapshotState()
	assert.NoError(t, err)

	restored := NewEmptyMessage(msg.AggregateID())
	assert.NoError(t, restored.Restore(state))
	assert.Equal(t, msg.DTO(), restored.DTO())
}
