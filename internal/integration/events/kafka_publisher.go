package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/davicafu/eventflow/internal/shared/eventlog"
)

// KafkaPublisher reexpide los eventos de dominio como eventos de
// integración para consumidores externos (routing de notificaciones,
// read models de otros servicios). La clave de partición es el id del
// agregado: el orden por entidad se conserva dentro de la partición.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec eventlog.RecordedEvent) error {
	data, err := json.Marshal(rec.Event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(rec.Event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(rec.Event.Type)},
			{Key: "tenant", Value: []byte(rec.Event.Tenant)},
			{Key: "correlation-id", Value: []byte(rec.Event.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.String("event_type", rec.Event.Type))
	return nil
}

// Projection adapta el publicador al router.
func (p *KafkaPublisher) Projection() func(ctx context.Context, rec eventlog.RecordedEvent) error {
	return p.Publish
}
