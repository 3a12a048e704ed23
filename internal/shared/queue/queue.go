package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Prioridades: menor valor = se procesa antes. Empate: FIFO por hora de encolado.
const (
	PriorityHigh    = 1 // tier por defecto para trabajos de notificación
	PriorityDefault = 5
	PriorityLow     = 10
)

const (
	DefaultAttempts = 4
	BackoffBase     = 1 * time.Second
	BackoffCap      = 60 * time.Second
)

// Backoff describe la política de espera entre reintentos de un job.
type Backoff struct {
	Type  string        `json:"type"` // "exponential" | "fixed"
	Delay time.Duration `json:"delay"`
}

// NextDelay calcula la espera para el intento dado: base × 2^attempt,
// con tope en BackoffCap.
func (b Backoff) NextDelay(attempt int) time.Duration {
	if b.Type != "exponential" {
		return b.Delay
	}
	d := b.Delay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= BackoffCap {
			return BackoffCap
		}
	}
	if d > BackoffCap {
		d = BackoffCap
	}
	return d
}

// JobData es la carga mínima del job: referencias, no estado del agregado.
// El handler siempre recarga el agregado desde su stream.
type JobData struct {
	AggregateID   string `json:"aggregate_id"`
	Tenant        string `json:"tenant"`
	ActorID       string `json:"actor_id"`
	CorrelationID string `json:"correlation_id"`
	Attempt       int    `json:"attempt"` // 0 en el primer intento
}

// Job es una unidad de entrega priorizada, con retraso y reintentos.
// La crea el orquestador; solo el runtime de la cola la muta después.
type Job struct {
	ID         uuid.UUID     `json:"id"`
	Queue      string        `json:"queue"`
	Name       string        `json:"name"` // tipo de operación, ej. "message.deliver"
	Data       JobData       `json:"data"`
	Priority   int           `json:"priority"`
	Delay      time.Duration `json:"delay"`
	Attempts   int           `json:"attempts"` // máximo de intentos permitidos
	Backoff    Backoff       `json:"backoff"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Handler procesa un job. Si devuelve error el runtime aparta el job al
// bucket de fallidos; la decisión de reintentar es del orquestador, que
// encola un job nuevo con attempt+1 (el ledger, no la cola, garantiza
// la no-duplicación de efectos).
type Handler func(ctx context.Context, job Job) error

// Stats son los contadores operacionales de una cola.
type Stats struct {
	Queue     string `json:"queue"`
	Pending   int64  `json:"pending"`
	Delayed   int64  `json:"delayed"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Paused    bool   `json:"paused"`
}

// Queue es el runtime de entrega duradera.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Consume registra el handler de una cola. Debe llamarse antes de Start.
	Consume(queue string, h Handler)
	Start(ctx context.Context)
	Stop()

	// Superficie de administración; no altera invariantes de entrega.
	Pause(queue string)
	Resume(queue string)
	Stats(ctx context.Context, queue string) (Stats, error)
	FailedJobs(ctx context.Context, queue string) ([]Job, error)
}
