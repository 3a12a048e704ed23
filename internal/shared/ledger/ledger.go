package ledger

import (
	"context"
	"time"
)

// ProcessingStatus es el estado de una fila del ledger de eventos procesados.
type ProcessingStatus string

const (
	StatusProcessing ProcessingStatus = "processing"
	StatusProcessed  ProcessingStatus = "processed"
	StatusFailed     ProcessingStatus = "failed"
	StatusSkipped    ProcessingStatus = "skipped"
)

// Done indica si la fila cuenta como "ya procesada" para IsProcessed.
// processing NO cuenta: está en vuelo, no terminada.
func (s ProcessingStatus) Done() bool {
	return s == StatusProcessed || s == StatusFailed || s == StatusSkipped
}

// DefaultLease es el tiempo tras el cual una fila atascada en "processing"
// (crash entre claim y finalize) puede ser reclamada de nuevo.
const DefaultLease = 5 * time.Minute

// Ledger es el registro duradero de qué (stream, revision) ya se manejó.
// Es el único recurso mutable compartido que impide la ejecución duplicada
// entre procesos: la garantía de entrega de la cola NO es la fuente de verdad.
type Ledger interface {
	// IsProcessed devuelve true si existe fila con estado terminado.
	IsProcessed(ctx context.Context, stream string, revision uint64) (bool, error)

	// Claim intenta el insert único atómico con status=processing.
	// Exactamente un llamante concurrente recibe nil; el resto recibe
	// domain.ErrAlreadyClaimed y no debe ejecutar efectos para ese evento.
	// Una fila "processing" cuyo lease expiró puede reclamarse otra vez.
	Claim(ctx context.Context, stream string, revision uint64) error

	// Finalize actualiza la fila tras completar el handler.
	Finalize(ctx context.Context, stream string, revision uint64, status ProcessingStatus) error
}
