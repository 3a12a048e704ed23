package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

// PostgresLedger implementa Ledger sobre Postgres con pgx. El claim es un
// INSERT con clave única compuesta (service_context, stream_name, revision):
// la restricción de unicidad es lo que hace la comprobación libre de carreras.
type PostgresLedger struct {
	pool           *pgxpool.Pool
	serviceContext string // permite varios consumidores sobre el mismo log
	lease          time.Duration
}

func NewPostgresLedger(pool *pgxpool.Pool, serviceContext string, lease time.Duration) *PostgresLedger {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &PostgresLedger{pool: pool, serviceContext: serviceContext, lease: lease}
}

// InitPostgres crea la tabla del ledger si no existe.
func InitPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processed_events (
			service_context TEXT      NOT NULL,
			stream_name     TEXT      NOT NULL,
			revision        BIGINT    NOT NULL,
			status          TEXT      NOT NULL,
			claimed_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (service_context, stream_name, revision)
		)`)
	return err
}

func (l *PostgresLedger) IsProcessed(ctx context.Context, stream string, revision uint64) (bool, error) {
	var done bool
	err := l.pool.QueryRow(ctx,
		`SELECT status IN ('processed','failed','skipped')
		 FROM processed_events
		 WHERE service_context=$1 AND stream_name=$2 AND revision=$3`,
		l.serviceContext, stream, int64(revision),
	).Scan(&done)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, &sharedDomain.TransientError{Op: "ledger.isProcessed", Err: err}
	}
	return done, nil
}

// Claim inserta la fila en processing; si ya existe, solo la roba cuando
// quedó en processing con el lease expirado. RowsAffected==0 ⇒ perdimos.
func (l *PostgresLedger) Claim(ctx context.Context, stream string, revision uint64) error {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO processed_events (service_context, stream_name, revision, status, claimed_at)
		 VALUES ($1, $2, $3, 'processing', now())
		 ON CONFLICT (service_context, stream_name, revision) DO UPDATE
		   SET status='processing', claimed_at=now()
		   WHERE processed_events.status='processing'
		     AND processed_events.claimed_at < now() - make_interval(secs => $4)`,
		l.serviceContext, stream, int64(revision), l.lease.Seconds(),
	)
	if err != nil {
		return &sharedDomain.TransientError{Op: "ledger.claim", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return sharedDomain.ErrAlreadyClaimed
	}
	return nil
}

func (l *PostgresLedger) Finalize(ctx context.Context, stream string, revision uint64, status ProcessingStatus) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE processed_events SET status=$4
		 WHERE service_context=$1 AND stream_name=$2 AND revision=$3`,
		l.serviceContext, stream, int64(revision), string(status),
	)
	if err != nil {
		return &sharedDomain.TransientError{Op: "ledger.finalize", Err: err}
	}
	return nil
}

// Verificación estática
var _ Ledger = (*PostgresLedger)(nil)
