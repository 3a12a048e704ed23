package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
)

var testActor = sharedDomain.Actor{SubjectID: "user-1", Tenant: "acme"}

func newMessageRepo(client eventlog.Client, snapshotEvery uint64) *Repository {
	return New(client,
		messageDomain.BoundedContext, messageDomain.AggregateType, messageDomain.AggregateVersion,
		func(id string) EventSourced { return messageDomain.NewEmptyMessage(id) },
		snapshotEvery, zap.NewNop())
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemoryLog()
	repo := newMessageRepo(log, 0)

	msg, err := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{
		Channel: "#alerts", Content: "hola",
	})
	assert.NoError(t, err)

	// Act: save y load
	assert.NoError(t, repo.Save(ctx, testActor, msg))
	assert.Empty(t, msg.Uncommitted(), "tras el save la lista pendiente queda vacía")

	loaded, err := repo.Load(ctx, testActor, msg.AggregateID())
	assert.NoError(t, err)
	assert.Equal(t, msg.DTO(), loaded.(*messageDomain.Message).DTO())
}

func TestRepository_LoadNoEncontrado(t *testing.T) {
	repo := newMessageRepo(eventlog.NewMemoryLog(), 0)

	_, err := repo.Load(context.Background(), testActor, "4f4e9cfc-0000-0000-0000-000000000000")

	assert.ErrorIs(t, err, sharedDomain.ErrAggregateNotFound)
}

func TestRepository_ActorObligatorio(t *testing.T) {
	repo := newMessageRepo(eventlog.NewMemoryLog(), 0)

	_, err := repo.Load(context.Background(), sharedDomain.Actor{}, "x")
	assert.ErrorIs(t, err, sharedDomain.ErrActorRequired)

	msg, _ := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{Channel: "#x", Content: "y"})
	assert.ErrorIs(t, repo.Save(context.Background(), sharedDomain.Actor{}, msg), sharedDomain.ErrActorRequired)
}

// TestRepository_SaveSinCambios: guardar sin eventos pendientes no hace I/O.
func TestRepository_SaveSinCambios(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemoryLog()
	repo := newMessageRepo(log, 0)

	msg, _ := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{Channel: "#x", Content: "y"})
	assert.NoError(t, repo.Save(ctx, testActor, msg))

	stream := repo.StreamName(testActor.Tenant, msg.AggregateID())
	before, _ := log.StreamRevision(ctx, stream)

	// segundo save sin cambios
	assert.NoError(t, repo.Save(ctx, testActor, msg))
	after, _ := log.StreamRevision(ctx, stream)
	assert.Equal(t, before, after)
}

// TestRepository_CicloDeVidaCompleto: varias transiciones en saves sucesivos
// se rehidratan al mismo estado observable.
func TestRepository_CicloDeVidaCompleto(t *testing.T) {
	ctx := context.Background()
	repo := newMessageRepo(eventlog.NewMemoryLog(), 0)

	msg, _ := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{Channel: "#x", Content: "y"})
	assert.NoError(t, repo.Save(ctx, testActor, msg))

	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = msg.MarkForRetry(testActor, "timeout", nil)
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	_ = msg.Complete(testActor, nil)
	assert.NoError(t, repo.Save(ctx, testActor, msg))

	loaded, err := repo.Load(ctx, testActor, msg.AggregateID())
	assert.NoError(t, err)
	reloaded := loaded.(*messageDomain.Message)
	assert.Equal(t, sharedDomain.StatusSuccess, reloaded.Status())
	assert.Equal(t, 1, reloaded.RetryCount())
}

// TestRepository_AislamientoPorTenant: el stream incluye el tenant, así que
// otro tenant no ve el agregado.
func TestRepository_AislamientoPorTenant(t *testing.T) {
	ctx := context.Background()
	repo := newMessageRepo(eventlog.NewMemoryLog(), 0)

	msg, _ := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{Channel: "#x", Content: "y"})
	assert.NoError(t, repo.Save(ctx, testActor, msg))

	otro := sharedDomain.Actor{SubjectID: "user-2", Tenant: "globex"}
	_, err := repo.Load(ctx, otro, msg.AggregateID())
	assert.ErrorIs(t, err, sharedDomain.ErrAggregateNotFound)
}

func TestRepository_Category(t *testing.T) {
	repo := newMessageRepo(eventlog.NewMemoryLog(), 0)
	assert.Equal(t, "messaging.message.v1", repo.Category())
}

// TestRepository_SnapshotYDelta: con snapshots activados el load restaura el
// snapshot y aplica solo los eventos posteriores.
func TestRepository_SnapshotYDelta(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemoryLog()
	repo := newMessageRepo(log, 2) // snapshot cada 2 eventos

	msg, _ := messageDomain.NewMessage(testActor, messageDomain.NewMessageParams{Channel: "#x", Content: "y"})
	assert.NoError(t, repo.Save(ctx, testActor, msg))
	_ = msg.UpdateStatus(testActor, sharedDomain.StatusProcessing)
	assert.NoError(t, repo.Save(ctx, testActor, msg)) // revisión 2: snapshot

	stream := repo.StreamName(testActor.Tenant, msg.AggregateID())
	snap, err := log.LatestSnapshot(ctx, stream)
	assert.NoError(t, err)
	assert.NotNil(t, snap, "en la revisión 2 se guardó snapshot")
	assert.Equal(t, uint64(2), snap.Revision)

	loaded, err := repo.Load(ctx, testActor, msg.AggregateID())
	assert.NoError(t, err)
	assert.Equal(t, msg.DTO(), loaded.(*messageDomain.Message).DTO())
}
