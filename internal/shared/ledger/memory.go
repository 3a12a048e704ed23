package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

type memRow struct {
	status    ProcessingStatus
	claimedAt time.Time
}

// MemoryLedger implementa Ledger en memoria, para despliegue local y tests.
// Reproduce la misma semántica de claim único + lease que las variantes SQL.
type MemoryLedger struct {
	mu    sync.Mutex
	rows  map[string]memRow
	lease time.Duration
}

func NewMemoryLedger(lease time.Duration) *MemoryLedger {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &MemoryLedger{rows: make(map[string]memRow), lease: lease}
}

func key(stream string, revision uint64) string {
	return fmt.Sprintf("%s@%d", stream, revision)
}

func (l *MemoryLedger) IsProcessed(ctx context.Context, stream string, revision uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[key(stream, revision)]
	return ok && row.status.Done(), nil
}

func (l *MemoryLedger) Claim(ctx context.Context, stream string, revision uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(stream, revision)
	if row, ok := l.rows[k]; ok {
		// re-claim solo si la fila quedó en processing y el lease expiró
		if row.status != StatusProcessing || time.Since(row.claimedAt) < l.lease {
			return sharedDomain.ErrAlreadyClaimed
		}
	}
	l.rows[k] = memRow{status: StatusProcessing, claimedAt: time.Now()}
	return nil
}

func (l *MemoryLedger) Finalize(ctx context.Context, stream string, revision uint64, status ProcessingStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(stream, revision)
	row, ok := l.rows[k]
	if !ok {
		return fmt.Errorf("ledger row not found: %s", k)
	}
	row.status = status
	l.rows[k] = row
	return nil
}

// Verificación estática
var _ Ledger = (*MemoryLedger)(nil)
