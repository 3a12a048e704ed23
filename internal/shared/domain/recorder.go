package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// EventRecorder acumula los eventos sin confirmar de un agregado.
// Se embebe por composición en cada tipo de agregado (nada de herencia de
// un AggregateRoot genérico): el agregado decide cuándo grabar, el recorder
// solo guarda la lista hasta que el repositorio confirma el append.
type EventRecorder struct {
	uncommitted []sharedEvents.DomainEvent
}

// Record construye el sobre del evento y lo añade a la lista pendiente.
// props debe ser el DTO público completo del agregado tras la transición.
func (r *EventRecorder) Record(eventType, aggregateID string, actor Actor, correlationID string, props interface{}) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	r.uncommitted = append(r.uncommitted, sharedEvents.DomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		Tenant:        actor.Tenant,
		ActorID:       actor.SubjectID,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Props:         raw,
	})
	return nil
}

// Uncommitted devuelve los eventos pendientes de persistir, en orden de emisión.
func (r *EventRecorder) Uncommitted() []sharedEvents.DomainEvent {
	return r.uncommitted
}

// ClearUncommitted vacía la lista. Solo lo llama el repositorio tras
// confirmar el append: si el append falla, los eventos se conservan para
// que el llamante pueda reintentar el save.
func (r *EventRecorder) ClearUncommitted() {
	r.uncommitted = nil
}

// Aggregate es el contrato mínimo que el repositorio genérico necesita.
type Aggregate interface {
	AggregateID() string
	AggregateTenant() string
	Uncommitted() []sharedEvents.DomainEvent
	ClearUncommitted()
	// Apply rehidrata el estado desde un evento ya persistido, sin emitir
	// eventos nuevos: es el fold que reconstruye el agregado.
	Apply(evt sharedEvents.DomainEvent) error
}
