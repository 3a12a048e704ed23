package repository

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
)

// EventSourced es lo que el repositorio necesita de un agregado además del
// contrato base: restaurar desde snapshot y exportar su estado para uno nuevo.
type EventSourced interface {
	sharedDomain.Aggregate
	Restore(state json.RawMessage) error
	SnapshotState() (json.RawMessage, error)
}

// Factory construye un agregado vacío listo para rehidratar.
type Factory func(id string) EventSourced

// Repository carga agregados reproduciendo su stream (o snapshot + delta) y
// en el save añade los eventos sin confirmar al log, agrupados por tipo.
type Repository struct {
	client         eventlog.Client
	boundedContext string
	aggregateType  string
	version        string
	newAggregate   Factory
	snapshotEvery  uint64 // 0 = sin snapshots
	log            *zap.Logger
}

func New(client eventlog.Client, boundedContext, aggregateType, version string, factory Factory, snapshotEvery uint64, log *zap.Logger) *Repository {
	return &Repository{
		client:         client,
		boundedContext: boundedContext,
		aggregateType:  aggregateType,
		version:        version,
		newAggregate:   factory,
		snapshotEvery:  snapshotEvery,
		log:            log,
	}
}

// StreamName es determinista desde (contexto, tipo, versión, tenant, id):
// escritor y consumidor de catchup coinciden sin paso de descubrimiento.
func (r *Repository) StreamName(tenant, id string) string {
	return eventlog.StreamName(r.boundedContext, r.aggregateType, r.version, tenant, id)
}

// Category devuelve el prefijo de categoría de este tipo de agregado, el que
// usa el router para suscribirse a todos sus streams.
func (r *Repository) Category() string {
	return eventlog.CategoryOf(r.StreamName("t", "i"))
}

// Load rehidrata el agregado: último snapshot + eventos posteriores, o el
// stream completo desde el principio. Devuelve el agregado con la lista de
// eventos sin confirmar vacía.
func (r *Repository) Load(ctx context.Context, actor sharedDomain.Actor, id string) (EventSourced, error) {
	if actor.IsZero() {
		return nil, sharedDomain.ErrActorRequired
	}

	stream := r.StreamName(actor.Tenant, id)
	agg := r.newAggregate(id)

	var from uint64
	if r.snapshotEvery > 0 {
		snap, err := r.client.LatestSnapshot(ctx, stream)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			if err := agg.Restore(snap.State); err != nil {
				return nil, err
			}
			from = snap.Revision
		}
	}

	last, err := r.client.Catchup(ctx, stream, from, func(ctx context.Context, rec eventlog.RecordedEvent) error {
		return agg.Apply(rec.Event)
	})
	if err != nil {
		return nil, err
	}
	if last == 0 {
		return nil, sharedDomain.ErrAggregateNotFound
	}
	return agg, nil
}

// Save añade los eventos sin confirmar al stream del agregado. Si no hay
// ninguno, no hace I/O: guardar un agregado sin cambios es gratis. Los
// eventos se agrupan por tipo conservando el orden relativo dentro de cada
// grupo, y cada grupo entra como una llamada atómica. Solo tras el éxito se
// vacía la lista; si falla el append, se conserva para reintentar el save.
func (r *Repository) Save(ctx context.Context, actor sharedDomain.Actor, agg EventSourced) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}

	pending := agg.Uncommitted()
	if len(pending) == 0 {
		return nil
	}

	stream := r.StreamName(agg.AggregateTenant(), agg.AggregateID())
	for _, group := range groupByType(pending) {
		if err := r.client.Append(ctx, stream, group); err != nil {
			return err
		}
	}
	agg.ClearUncommitted()

	r.maybeSnapshot(ctx, stream, agg)
	return nil
}

// maybeSnapshot guarda un snapshot cada snapshotEvery eventos. Un fallo aquí
// no invalida el save: el snapshot es solo una optimización de lectura.
func (r *Repository) maybeSnapshot(ctx context.Context, stream string, agg EventSourced) {
	if r.snapshotEvery == 0 {
		return
	}
	rev, err := r.client.StreamRevision(ctx, stream)
	if err != nil || rev == 0 || rev%r.snapshotEvery != 0 {
		return
	}
	state, err := agg.SnapshotState()
	if err != nil {
		return
	}
	snap := eventlog.Snapshot{Stream: stream, Revision: rev, State: state}
	if err := r.client.SaveSnapshot(ctx, snap); err != nil {
		r.log.Warn("⚠️ No se pudo guardar snapshot", zap.String("stream", stream), zap.Error(err))
	}
}

// groupByType particiona los eventos por tipo conservando el orden relativo
// dentro de cada grupo y el orden de primera aparición entre grupos.
func groupByType(events []sharedEvents.DomainEvent) [][]sharedEvents.DomainEvent {
	var order []string
	byType := make(map[string][]sharedEvents.DomainEvent)
	for _, evt := range events {
		if _, ok := byType[evt.Type]; !ok {
			order = append(order, evt.Type)
		}
		byType[evt.Type] = append(byType[evt.Type], evt)
	}
	groups := make([][]sharedEvents.DomainEvent, 0, len(order))
	for _, t := range order {
		groups = append(groups, byType[t])
	}
	return groups
}
