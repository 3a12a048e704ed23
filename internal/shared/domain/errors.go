package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrActorRequired se devuelve cuando una mutación llega sin actor.
	ErrActorRequired = errors.New("actor required")

	// ErrAlreadyClaimed no es un error de negocio: es el resultado esperado
	// cuando otro consumidor ganó el claim de un (stream, revision).
	ErrAlreadyClaimed = errors.New("event already claimed")

	// ErrAggregateNotFound indica que el stream del agregado no existe.
	ErrAggregateNotFound = errors.New("aggregate not found")
)

// ValidationError: campo requerido ausente o malformado. Nunca se reintenta.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// InvariantError: la transición dejaría al agregado en un estado inválido.
// Se rechaza antes de emitir ningún evento.
type InvariantError struct {
	Aggregate string
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated on %s: %s", e.Aggregate, e.Reason)
}

// TransientError: fallo de infraestructura (eventlog, ledger). El llamante
// puede reintentar el ciclo load-mutate-save completo; los eventos sin
// confirmar se conservan.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// DeliveryError clasifica el texto de error del transporte.
type DeliveryError struct {
	Retryable bool
	Reason    string
}

func (e *DeliveryError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("delivery error (%s): %s", kind, e.Reason)
}
