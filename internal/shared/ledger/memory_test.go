package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

const stream = "messaging.message.v1-acme-m1"

// TestMemoryLedger_ClaimUnico: de N llamantes concurrentes sobre el mismo
// (stream, revision), exactamente uno gana el claim.
func TestMemoryLedger_ClaimUnico(t *testing.T) {
	led := NewMemoryLedger(DefaultLease)
	ctx := context.Background()

	var winners int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := led.Claim(ctx, stream, 1); err == nil {
				atomic.AddInt64(&winners, 1)
			} else {
				assert.ErrorIs(t, err, sharedDomain.ErrAlreadyClaimed)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners)
}

// TestMemoryLedger_ProcessingNoCuenta: una fila en vuelo no es "ya procesada".
func TestMemoryLedger_ProcessingNoCuenta(t *testing.T) {
	led := NewMemoryLedger(DefaultLease)
	ctx := context.Background()

	assert.NoError(t, led.Claim(ctx, stream, 1))

	done, err := led.IsProcessed(ctx, stream, 1)
	assert.NoError(t, err)
	assert.False(t, done, "processing está en vuelo, no terminada")

	assert.NoError(t, led.Finalize(ctx, stream, 1, StatusProcessed))
	done, _ = led.IsProcessed(ctx, stream, 1)
	assert.True(t, done)
}

// TestMemoryLedger_EstadosTerminados: failed y skipped también cuentan como
// hechas para IsProcessed (no se reintenta un evento finalizado).
func TestMemoryLedger_EstadosTerminados(t *testing.T) {
	led := NewMemoryLedger(DefaultLease)
	ctx := context.Background()

	for rev, status := range map[uint64]ProcessingStatus{
		1: StatusFailed,
		2: StatusSkipped,
	} {
		assert.NoError(t, led.Claim(ctx, stream, rev))
		assert.NoError(t, led.Finalize(ctx, stream, rev, status))
		done, _ := led.IsProcessed(ctx, stream, rev)
		assert.True(t, done, "status %s", status)
	}
}

// TestMemoryLedger_LeaseExpirado: una fila atascada en processing puede
// reclamarse de nuevo cuando vence el lease, pero no antes.
func TestMemoryLedger_LeaseExpirado(t *testing.T) {
	led := NewMemoryLedger(50 * time.Millisecond)
	ctx := context.Background()

	assert.NoError(t, led.Claim(ctx, stream, 1))
	assert.ErrorIs(t, led.Claim(ctx, stream, 1), sharedDomain.ErrAlreadyClaimed)

	time.Sleep(60 * time.Millisecond)
	assert.NoError(t, led.Claim(ctx, stream, 1), "tras el lease el claim vuelve a estar disponible")
}

// TestMemoryLedger_FinalizadoNoSeReclama: el lease solo aplica a processing.
func TestMemoryLedger_FinalizadoNoSeReclama(t *testing.T) {
	led := NewMemoryLedger(time.Nanosecond)
	ctx := context.Background()

	assert.NoError(t, led.Claim(ctx, stream, 1))
	assert.NoError(t, led.Finalize(ctx, stream, 1, StatusProcessed))

	time.Sleep(time.Millisecond)
	assert.ErrorIs(t, led.Claim(ctx, stream, 1), sharedDomain.ErrAlreadyClaimed)
}

func TestMemoryLedger_RevisionesIndependientes(t *testing.T) {
	led := NewMemoryLedger(DefaultLease)
	ctx := context.Background()

	assert.NoError(t, led.Claim(ctx, stream, 1))
	assert.NoError(t, led.Claim(ctx, stream, 2), "otra revision es otra fila")
	assert.NoError(t, led.Claim(ctx, "otro-stream", 1))
}
