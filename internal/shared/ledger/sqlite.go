package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

// SQLiteLedger implementa Ledger sobre SQLite para despliegue local.
// Misma semántica que Postgres: unicidad compuesta + upsert condicional.
type SQLiteLedger struct {
	db             *sql.DB
	serviceContext string
	lease          time.Duration
}

func NewSQLiteLedger(db *sql.DB, serviceContext string, lease time.Duration) *SQLiteLedger {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &SQLiteLedger{db: db, serviceContext: serviceContext, lease: lease}
}

// InitSQLite crea la tabla del ledger si no existe.
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_events (
			service_context TEXT    NOT NULL,
			stream_name     TEXT    NOT NULL,
			revision        INTEGER NOT NULL,
			status          TEXT    NOT NULL,
			claimed_at      INTEGER NOT NULL,
			PRIMARY KEY (service_context, stream_name, revision)
		)`)
	return err
}

func (l *SQLiteLedger) IsProcessed(ctx context.Context, stream string, revision uint64) (bool, error) {
	var status string
	err := l.db.QueryRowContext(ctx,
		`SELECT status FROM processed_events
		 WHERE service_context=? AND stream_name=? AND revision=?`,
		l.serviceContext, stream, int64(revision),
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &sharedDomain.TransientError{Op: "ledger.isProcessed", Err: err}
	}
	return ProcessingStatus(status).Done(), nil
}

func (l *SQLiteLedger) Claim(ctx context.Context, stream string, revision uint64) error {
	now := time.Now().Unix()
	cutoff := now - int64(l.lease.Seconds())

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO processed_events (service_context, stream_name, revision, status, claimed_at)
		 VALUES (?, ?, ?, 'processing', ?)
		 ON CONFLICT (service_context, stream_name, revision) DO UPDATE
		   SET status='processing', claimed_at=excluded.claimed_at
		   WHERE processed_events.status='processing'
		     AND processed_events.claimed_at < ?`,
		l.serviceContext, stream, int64(revision), now, cutoff,
	)
	if err != nil {
		return &sharedDomain.TransientError{Op: "ledger.claim", Err: err}
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return &sharedDomain.TransientError{Op: "ledger.claim", Err: err}
	}
	if rows == 0 {
		return sharedDomain.ErrAlreadyClaimed
	}
	return nil
}

func (l *SQLiteLedger) Finalize(ctx context.Context, stream string, revision uint64, status ProcessingStatus) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE processed_events SET status=?
		 WHERE service_context=? AND stream_name=? AND revision=?`,
		string(status), l.serviceContext, stream, int64(revision),
	)
	if err != nil {
		return &sharedDomain.TransientError{Op: "ledger.finalize", Err: err}
	}
	return nil
}

// Verificación estática
var _ Ledger = (*SQLiteLedger)(nil)
