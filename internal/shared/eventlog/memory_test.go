package eventlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

func newEvent(eventType string) sharedEvents.DomainEvent {
	return sharedEvents.DomainEvent{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: "agg-1",
		Tenant:      "acme",
		OccurredAt:  time.Now().UTC(),
		Props:       []byte(`{}`),
	}
}

func TestStreamName_Categoria(t *testing.T) {
	stream := StreamName("messaging", "message", "v1", "acme", "abc")

	assert.Equal(t, "messaging.message.v1-acme-abc", stream)
	assert.Equal(t, "messaging.message.v1", CategoryOf(stream))
}

// TestMemoryLog_AppendCatchup: las revisiones son monótonas por stream y el
// catchup respeta la cota inferior exclusiva.
func TestMemoryLog_AppendCatchup(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	stream := StreamName("messaging", "message", "v1", "acme", "m1")

	assert.NoError(t, log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("a"), newEvent("b")}))
	assert.NoError(t, log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("c")}))

	var seen []string
	last, err := log.Catchup(ctx, stream, 0, func(ctx context.Context, rec RecordedEvent) error {
		seen = append(seen, rec.Event.Type)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), last)
	assert.Equal(t, []string{"a", "b", "c"}, seen)

	// desde la revisión 2 (exclusiva) solo queda el tercero
	seen = nil
	last, err = log.Catchup(ctx, stream, 2, func(ctx context.Context, rec RecordedEvent) error {
		seen = append(seen, rec.Event.Type)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), last)
	assert.Equal(t, []string{"c"}, seen)

	rev, err := log.StreamRevision(ctx, stream)
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), rev)
}

// TestMemoryLog_CatchupStreamVacio: un stream inexistente devuelve la misma
// cota que entró (el repositorio lo interpreta como "no encontrado").
func TestMemoryLog_CatchupStreamVacio(t *testing.T) {
	log := NewMemoryLog()

	last, err := log.Catchup(context.Background(), "messaging.message.v1-acme-nope", 0, func(ctx context.Context, rec RecordedEvent) error {
		t.Fatal("no debería entregar eventos")
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), last)
}

// TestMemoryLog_CategoriaCruzaStreams: el feed de categoría agrega todos los
// streams del mismo tipo de agregado en orden de Seq global.
func TestMemoryLog_CategoriaCruzaStreams(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	s1 := StreamName("messaging", "message", "v1", "acme", "m1")
	s2 := StreamName("messaging", "message", "v1", "globex", "m2")
	otro := StreamName("payments", "transaction", "v1", "acme", "t1")

	_ = log.Append(ctx, s1, []sharedEvents.DomainEvent{newEvent("a")})
	_ = log.Append(ctx, otro, []sharedEvents.DomainEvent{newEvent("x")})
	_ = log.Append(ctx, s2, []sharedEvents.DomainEvent{newEvent("b")})

	var seen []string
	last, err := log.CatchupCategory(ctx, "messaging.message.v1", 0, func(ctx context.Context, rec RecordedEvent) error {
		seen = append(seen, rec.Event.Type)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen, "el evento de payments no aparece")
	assert.Equal(t, uint64(3), last, "la última posición es el Seq global")
}

// TestMemoryLog_CatchupThenSubscribe: la composición catchup + suscripción
// desde la última posición vista no pierde ni duplica en la frontera.
func TestMemoryLog_CatchupThenSubscribe(t *testing.T) {
	log := NewMemoryLog()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := StreamName("messaging", "message", "v1", "acme", "m1")
	category := "messaging.message.v1"

	_ = log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("histórico")})

	var mu sync.Mutex
	var seen []string
	record := func(ctx context.Context, rec RecordedEvent) error {
		mu.Lock()
		seen = append(seen, rec.Event.Type)
		mu.Unlock()
		return nil
	}

	last, err := log.CatchupCategory(ctx, category, 0, record)
	assert.NoError(t, err)

	// escrito entre el catchup y la suscripción: la ventana más fácil de perder
	_ = log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("ventana")})

	sub, err := log.SubscribeCategory(ctx, category, last, record)
	assert.NoError(t, err)
	defer sub.Cancel()

	_ = log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("en-vivo")})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"histórico", "ventana", "en-vivo"}, seen, "sin huecos ni duplicados en la frontera")
	mu.Unlock()
}

// TestMemoryLog_SubscribeStreamConVentana: mismo contrato de frontera para la
// suscripción por stream, con la cota en revisiones.
func TestMemoryLog_SubscribeStreamConVentana(t *testing.T) {
	log := NewMemoryLog()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := StreamName("messaging", "message", "v1", "acme", "m1")

	_ = log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("histórico"), newEvent("ventana")})

	var mu sync.Mutex
	var seen []string
	sub, err := log.SubscribeLive(ctx, stream, 1, func(ctx context.Context, rec RecordedEvent) error {
		mu.Lock()
		seen = append(seen, rec.Event.Type)
		mu.Unlock()
		return nil
	})
	assert.NoError(t, err)
	defer sub.Cancel()

	_ = log.Append(ctx, stream, []sharedEvents.DomainEvent{newEvent("en-vivo")})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"ventana", "en-vivo"}, seen, "la revisión 1 ya vista no se repite")
	mu.Unlock()
}

func TestMemoryLog_Snapshot(t *testing.T) {
	log := NewMemoryLog()
	ctx := context.Background()
	stream := StreamName("messaging", "message", "v1", "acme", "m1")

	snap, err := log.LatestSnapshot(ctx, stream)
	assert.NoError(t, err)
	assert.Nil(t, snap, "sin snapshot devuelve nil, no error")

	assert.NoError(t, log.SaveSnapshot(ctx, Snapshot{Stream: stream, Revision: 5, State: []byte(`{"a":1}`)}))

	snap, err = log.LatestSnapshot(ctx, stream)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Revision)
	assert.JSONEq(t, `{"a":1}`, string(snap.State))
}
