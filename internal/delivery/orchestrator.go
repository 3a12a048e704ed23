package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/shared/queue"
)

// Lifecycle es lo que el orquestador necesita del agregado: el ciclo
// load-mutate-save lo encapsula el servicio de aplicación de cada contexto.
type Lifecycle interface {
	Complete(ctx context.Context, actor sharedDomain.Actor, aggregateID string) error
	MarkForRetry(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string, nextRetryAt time.Time) error
	MarkAsFailed(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string) error
}

// Executor realiza el intento de entrega en sí (transporte, settlement...).
type Executor func(ctx context.Context, job queue.Job) error

// JobSpec es la intención "encolar para entrega" que el orquestador
// convierte en un job priorizado con retraso y política de backoff.
type JobSpec struct {
	Queue         string
	Name          string
	AggregateID   string
	Tenant        string
	ActorID       string
	CorrelationID string
	ScheduledAt   *time.Time
	Priority      *int
}

// Orchestrator convierte intenciones en jobs y decide, ante un fallo de
// entrega, entre reintento con backoff exponencial o fallo permanente.
type Orchestrator struct {
	queue queue.Queue
	log   *zap.Logger
}

func NewOrchestrator(q queue.Queue, log *zap.Logger) *Orchestrator {
	return &Orchestrator{queue: q, log: log}
}

// Enqueue calcula delay = max(0, scheduledAt - now) si hay programación, y
// asigna el tier "high" por defecto a los trabajos de notificación.
func (o *Orchestrator) Enqueue(ctx context.Context, spec JobSpec) error {
	var delay time.Duration
	if spec.ScheduledAt != nil {
		if d := time.Until(*spec.ScheduledAt); d > 0 {
			delay = d
		}
	}
	priority := queue.PriorityHigh
	if spec.Priority != nil {
		priority = *spec.Priority
	}

	job := queue.Job{
		ID:    uuid.New(),
		Queue: spec.Queue,
		Name:  spec.Name,
		Data: queue.JobData{
			AggregateID:   spec.AggregateID,
			Tenant:        spec.Tenant,
			ActorID:       spec.ActorID,
			CorrelationID: spec.CorrelationID,
		},
		Priority:   priority,
		Delay:      delay,
		Attempts:   queue.DefaultAttempts,
		Backoff:    queue.Backoff{Type: "exponential", Delay: queue.BackoffBase},
		EnqueuedAt: time.Now().UTC(),
	}

	o.log.Info("📨 Job de entrega encolado",
		zap.String("queue", job.Queue),
		zap.String("job", job.Name),
		zap.String("aggregate_id", spec.AggregateID),
		zap.Duration("delay", delay),
		zap.Int("priority", priority),
	)
	return o.queue.Enqueue(ctx, job)
}

// Handler construye el consumidor de la cola para un par (ciclo de vida,
// ejecutor). Re-ejecutar un job ya completado es un no-op a nivel de
// agregado (Complete idempotente), no deduplicación de la cola.
func (o *Orchestrator) Handler(lc Lifecycle, exec Executor) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		actor := sharedDomain.Actor{SubjectID: job.Data.ActorID, Tenant: job.Data.Tenant}
		if actor.SubjectID == "" {
			actor.SubjectID = "delivery-worker"
		}

		err := exec(ctx, job)
		if err == nil {
			return lc.Complete(ctx, actor, job.Data.AggregateID)
		}

		// El fallo se registra sobre el agregado ANTES de decidir el
		// reintento: el registro de negocio y la decisión van juntos.
		derr := Classify(err)
		nextAttempt := job.Data.Attempt + 1

		if !derr.Retryable || nextAttempt >= job.Attempts {
			reason := derr.Reason
			if derr.Retryable {
				reason = "retry attempts exhausted: " + reason
			}
			if ferr := lc.MarkAsFailed(ctx, actor, job.Data.AggregateID, reason); ferr != nil {
				return ferr
			}
			// devolvemos el error para que el runtime archive el job en
			// el bucket de fallidos (superficie de administración)
			return derr
		}

		backoff := job.Backoff.NextDelay(job.Data.Attempt)
		nextRetryAt := time.Now().UTC().Add(backoff)
		if rerr := lc.MarkForRetry(ctx, actor, job.Data.AggregateID, derr.Reason, nextRetryAt); rerr != nil {
			return rerr
		}

		retry := job
		retry.ID = uuid.New()
		retry.Data.Attempt = nextAttempt
		retry.Delay = backoff
		retry.EnqueuedAt = time.Now().UTC()

		o.log.Info("🔁 Reintento programado",
			zap.String("queue", job.Queue),
			zap.String("aggregate_id", job.Data.AggregateID),
			zap.Int("attempt", nextAttempt),
			zap.Duration("backoff", backoff),
		)
		return o.queue.Enqueue(ctx, retry)
	}
}
