package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// RecordedEvent es un evento ya persistido en el log, con su posición.
// Revision es la posición dentro del stream (monótona, por stream);
// Seq es la posición global dentro del log, usada por los feeds de categoría.
type RecordedEvent struct {
	Stream   string
	Revision uint64
	Seq      uint64
	Event    sharedEvents.DomainEvent
}

// Snapshot sustituye la repetición del stream desde cero, pero nunca
// sustituye a los eventos escritos después de él.
type Snapshot struct {
	Stream   string          `json:"stream"`
	Revision uint64          `json:"revision"` // último evento incluido
	State    json.RawMessage `json:"state"`
	TakenAt  time.Time       `json:"taken_at"`
}

// OnEvent se invoca de forma síncrona por cada evento, en orden estricto.
// Si devuelve error, la lectura se detiene y el error se propaga.
type OnEvent func(ctx context.Context, evt RecordedEvent) error

// Subscription representa una suscripción en vivo cancelable.
type Subscription interface {
	Cancel()
}

// Client envuelve un log externo de solo-añadir.
//
// Los parámetros "from" son cota inferior exclusiva: "dame todo lo
// estrictamente posterior". Así la composición catchup-then-subscribe no
// pierde ni duplica eventos en la frontera.
type Client interface {
	// Append añade un lote de eventos de un mismo tipo a un stream de forma
	// atómica: o entra el lote completo o no entra nada.
	Append(ctx context.Context, stream string, events []sharedEvents.DomainEvent) error

	// Catchup lee el histórico de un stream desde fromRevision (exclusivo)
	// y devuelve la última revision vista, para que una suscripción en vivo
	// pueda continuar exactamente después.
	Catchup(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (uint64, error)

	// SubscribeLive entrega los eventos añadidos después de fromRevision,
	// en orden, hasta que se cancele.
	SubscribeLive(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (Subscription, error)

	// CatchupCategory y SubscribeCategory hacen lo mismo sobre el feed de
	// una categoría completa (todos los streams de un tipo de agregado),
	// posicionado por Seq global.
	CatchupCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (uint64, error)
	SubscribeCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (Subscription, error)

	// StreamRevision devuelve la revision del último evento del stream
	// (0 si el stream no existe).
	StreamRevision(ctx context.Context, stream string) (uint64, error)

	LatestSnapshot(ctx context.Context, stream string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// StreamName construye el nombre determinista del stream de un agregado.
// Escritor y consumidor de catchup deben coincidir sin paso de descubrimiento.
func StreamName(boundedContext, aggregateType, version, tenant, aggregateID string) string {
	return fmt.Sprintf("%s.%s.%s-%s-%s", boundedContext, aggregateType, version, tenant, aggregateID)
}

// CategoryOf extrae la categoría (contexto.tipo.versión) de un nombre de stream.
func CategoryOf(stream string) string {
	if i := strings.Index(stream, "-"); i >= 0 {
		return stream[:i]
	}
	return stream
}
