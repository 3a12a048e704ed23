package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/davicafu/eventflow/internal/shared/eventlog"
)

// DeliveryOutcome es la fila analítica de un evento de ciclo de vida.
type DeliveryOutcome struct {
	EventTime     time.Time
	Tenant        string
	Category      string
	AggregateID   string
	EventType     string
	Status        string
	RetryCount    int
	FailureReason string
	CorrelationID string
}

// DeliveryAnalyticsRepo acumula resultados de entrega y los inserta en
// ClickHouse por lotes: es como mejor funciona.
type DeliveryAnalyticsRepo struct {
	db  *sql.DB
	log *zap.Logger

	mu     sync.Mutex
	buffer []DeliveryOutcome

	batchSize int
	interval  time.Duration
	stop      chan struct{}
	once      sync.Once
}

func NewDeliveryAnalyticsRepo(addr, dbName string, batchSize int, interval time.Duration, log *zap.Logger) (*DeliveryAnalyticsRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	r := &DeliveryAnalyticsRepo{
		db:        conn,
		log:       log,
		batchSize: batchSize,
		interval:  interval,
		stop:      make(chan struct{}),
	}
	go r.flushLoop()
	return r, nil
}

// LogBatch inserta un lote de resultados directamente.
func (r *DeliveryAnalyticsRepo) LogBatch(ctx context.Context, outcomes []DeliveryOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO delivery_log (event_time, tenant, category, aggregate_id, event_type, status, retry_count, failure_reason, correlation_id)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx,
			o.EventTime, o.Tenant, o.Category, o.AggregateID,
			o.EventType, o.Status, o.RetryCount, o.FailureReason, o.CorrelationID,
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Projection adapta la analítica al router: acumula en el buffer y se
// vuelca en segundo plano para no bloquear el consumo de eventos.
func (r *DeliveryAnalyticsRepo) Projection() func(ctx context.Context, rec eventlog.RecordedEvent) error {
	return func(ctx context.Context, rec eventlog.RecordedEvent) error {
		var props struct {
			Status        string `json:"status"`
			RetryCount    int    `json:"retry_count"`
			FailureReason string `json:"failure_reason"`
		}
		// la fila analítica no es crítica: un payload raro no corta el router
		_ = json.Unmarshal(rec.Event.Props, &props)

		r.mu.Lock()
		r.buffer = append(r.buffer, DeliveryOutcome{
			EventTime:     rec.Event.OccurredAt,
			Tenant:        rec.Event.Tenant,
			Category:      eventlog.CategoryOf(rec.Stream),
			AggregateID:   rec.Event.AggregateID,
			EventType:     rec.Event.Type,
			Status:        props.Status,
			RetryCount:    props.RetryCount,
			FailureReason: props.FailureReason,
			CorrelationID: rec.Event.CorrelationID,
		})
		full := len(r.buffer) >= r.batchSize
		r.mu.Unlock()

		if full {
			r.Flush(ctx)
		}
		return nil
	}
}

// Flush vuelca el buffer acumulado.
func (r *DeliveryAnalyticsRepo) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := r.LogBatch(ctx, batch); err != nil {
		r.log.Warn("⚠️ No se pudo volcar el lote analítico", zap.Int("rows", len(batch)), zap.Error(err))
	}
}

func (r *DeliveryAnalyticsRepo) flushLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stop:
			r.Flush(context.Background())
			return
		}
	}
}

func (r *DeliveryAnalyticsRepo) Close() {
	r.once.Do(func() { close(r.stop) })
}
