package events

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// DomainEvent es el sobre común de todos los eventos de dominio.
// Props lleva un snapshot completo del DTO público del agregado en el
// momento de la emisión (no un diff): cualquier evento individual basta
// para reconstruir un read model sin necesitar los anteriores.
type DomainEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"` // versionado, ej. "payments.transaction.completed.v1"
	AggregateID   string          `json:"aggregate_id"`
	Tenant        string          `json:"tenant"`
	ActorID       string          `json:"actor_id"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Props         json.RawMessage `json:"props"`
}

// EventMetadata describe cómo el router debe tratar cada tipo de evento:
// a qué DTO decodifica Props y qué trabajo de entrega deriva.
type EventMetadata struct {
	Type  reflect.Type
	Job   string // nombre de la operación de entrega (vacío = solo proyección)
	Queue string
}

// Registry mapea tipo de evento → metadata. Cada dominio aporta el suyo
// y el composition root los fusiona.
type Registry map[string]EventMetadata
