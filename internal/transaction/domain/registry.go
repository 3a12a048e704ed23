package domain

import (
	"context"
	"errors"
	"reflect"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

const (
	TransactionCreated        = "payments.transaction.created.v1"
	TransactionStatusUpdated  = "payments.transaction.status_updated.v1"
	TransactionCompleted      = "payments.transaction.completed.v1"
	TransactionRetryScheduled = "payments.transaction.retry_scheduled.v1"
	TransactionFailed         = "payments.transaction.failed.v1"
	TransactionCancelled      = "payments.transaction.cancelled.v1"
)

const (
	BoundedContext   = "payments"
	AggregateType    = "transaction"
	AggregateVersion = "v1"

	SettlementQueue = "transaction-settlement"
	SettleJob       = "transaction.settle"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Settler es el ejecutor externo del asentamiento: una llamada bloqueante
// por intento, error en texto crudo para clasificar.
type Settler interface {
	Settle(ctx context.Context, dto TransactionDTO) error
}

func NewEventRegistry() sharedEvents.Registry {
	dto := reflect.TypeOf(TransactionDTO{})
	return sharedEvents.Registry{
		TransactionCreated:        {Type: dto, Job: SettleJob, Queue: SettlementQueue},
		TransactionRetryScheduled: {Type: dto},
		TransactionStatusUpdated:  {Type: dto},
		TransactionCompleted:      {Type: dto},
		TransactionFailed:         {Type: dto},
		TransactionCancelled:      {Type: dto},
	}
}
