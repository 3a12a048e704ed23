package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
	"github.com/davicafu/eventflow/internal/shared/ledger"
)

// Projection recibe cada evento reconocido (read models, analítica,
// eventos de integración). Su error marca la fila del ledger como failed.
type Projection func(ctx context.Context, rec eventlog.RecordedEvent) error

// Router es el consumidor de proyección: catchup del stream de categoría,
// suscripción en vivo justo después, y claim en el ledger antes de actuar.
// El claim, no la garantía de entrega de la cola, es la fuente de verdad
// de "esto ya se hizo".
type Router struct {
	client      eventlog.Client
	ledger      ledger.Ledger
	registry    sharedEvents.Registry
	orch        *Orchestrator
	projections []Projection
	log         *zap.Logger
}

func NewRouter(client eventlog.Client, led ledger.Ledger, registry sharedEvents.Registry, orch *Orchestrator, log *zap.Logger) *Router {
	return &Router{
		client:   client,
		ledger:   led,
		registry: registry,
		orch:     orch,
		log:      log,
	}
}

// AddProjection registra un consumidor adicional. Llamar antes de Run.
func (r *Router) AddProjection(p Projection) {
	r.projections = append(r.projections, p)
}

// Run hace el catchup de la categoría y continúa en vivo exactamente
// después de la última posición vista: sin huecos ni duplicados en la
// frontera. Devuelve la suscripción para poder cancelarla.
func (r *Router) Run(ctx context.Context, category string, fromSeq uint64) (eventlog.Subscription, error) {
	r.log.Info("🎧 Router: catchup de categoría", zap.String("category", category), zap.Uint64("from_seq", fromSeq))

	last, err := r.client.CatchupCategory(ctx, category, fromSeq, r.handle)
	if err != nil {
		return nil, err
	}

	r.log.Info("📡 Router: suscripción en vivo", zap.String("category", category), zap.Uint64("after_seq", last))
	return r.client.SubscribeCategory(ctx, category, last, r.handle)
}

func (r *Router) handle(ctx context.Context, rec eventlog.RecordedEvent) error {
	// 1. ¿Ya procesado? (restart-replay entrega duplicados; aquí se cortan)
	done, err := r.ledger.IsProcessed(ctx, rec.Stream, rec.Revision)
	if err != nil {
		return err
	}
	if done {
		r.log.Debug("Evento ya procesado, saltado",
			zap.String("stream", rec.Stream),
			zap.Uint64("revision", rec.Revision),
		)
		return nil
	}

	// 2. Claim atómico: exactamente un consumidor gana
	if err := r.ledger.Claim(ctx, rec.Stream, rec.Revision); err != nil {
		if errors.Is(err, sharedDomain.ErrAlreadyClaimed) {
			return nil // otro consumidor lo tiene; no es un error de negocio
		}
		return err
	}

	// 3. ¿Tipo reconocido?
	meta, ok := r.registry[rec.Event.Type]
	if !ok {
		return r.ledger.Finalize(ctx, rec.Stream, rec.Revision, ledger.StatusSkipped)
	}

	// 4. Proyecciones
	for _, project := range r.projections {
		if err := project(ctx, rec); err != nil {
			r.log.Warn("⚠️ Proyección falló",
				zap.String("event_type", rec.Event.Type),
				zap.String("stream", rec.Stream),
				zap.Error(err),
			)
			if ferr := r.ledger.Finalize(ctx, rec.Stream, rec.Revision, ledger.StatusFailed); ferr != nil {
				return ferr
			}
			return nil
		}
	}

	// 5. Trabajo de entrega derivado, si el tipo lo tiene
	if meta.Job != "" {
		spec, err := r.jobSpec(meta, rec.Event)
		if err != nil {
			if ferr := r.ledger.Finalize(ctx, rec.Stream, rec.Revision, ledger.StatusFailed); ferr != nil {
				return ferr
			}
			return nil
		}
		if err := r.orch.Enqueue(ctx, spec); err != nil {
			// el claim queda en processing: el lease permitirá reclamarlo
			return err
		}
	}

	return r.ledger.Finalize(ctx, rec.Stream, rec.Revision, ledger.StatusProcessed)
}

// jobSpec deriva la intención de entrega del sobre más los campos de
// programación/prioridad del snapshot de Props.
func (r *Router) jobSpec(meta sharedEvents.EventMetadata, evt sharedEvents.DomainEvent) (JobSpec, error) {
	var sched struct {
		ScheduledAt *time.Time `json:"scheduled_at"`
		Priority    *int       `json:"priority"`
	}
	if err := json.Unmarshal(evt.Props, &sched); err != nil {
		return JobSpec{}, err
	}
	return JobSpec{
		Queue:         meta.Queue,
		Name:          meta.Job,
		AggregateID:   evt.AggregateID,
		Tenant:        evt.Tenant,
		ActorID:       evt.ActorID,
		CorrelationID: evt.CorrelationID,
		ScheduledAt:   sched.ScheduledAt,
		Priority:      sched.Priority,
	}, nil
}
