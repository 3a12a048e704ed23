package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// Tipos de evento versionados del contexto messaging.
const (
	MessageCreated        = "messaging.message.created.v1"
	MessageStatusUpdated  = "messaging.message.status_updated.v1"
	MessageCompleted      = "messaging.message.completed.v1"
	MessageRetryScheduled = "messaging.message.retry_scheduled.v1"
	MessageFailed         = "messaging.message.failed.v1"
	MessageCancelled      = "messaging.message.cancelled.v1"
)

const (
	BoundedContext   = "messaging"
	AggregateType    = "message"
	AggregateVersion = "v1"

	// DeliveryQueue es la cola de entrega y DeliverJob la operación derivada
	// del evento de creación.
	DeliveryQueue = "message-delivery"
	DeliverJob    = "message.deliver"
)

// NewEventRegistry mapea cada tipo de evento a su metadata de routing.
// Solo Created deriva trabajo de entrega: los reintentos los re-encola el
// orquestador directamente, no el router (si no, se duplicarían jobs).
func NewEventRegistry() sharedEvents.Registry {
	dto := reflect.TypeOf(MessageDTO{})
	return sharedEvents.Registry{
		MessageCreated:        {Type: dto, Job: DeliverJob, Queue: DeliveryQueue},
		MessageRetryScheduled: {Type: dto},
		MessageStatusUpdated:  {Type: dto},
		MessageCompleted:      {Type: dto},
		MessageFailed:         {Type: dto},
		MessageCancelled:      {Type: dto},
	}
}
