package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	messageDomain "github.com/davicafu/eventflow/internal/message/domain"
	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/shared/eventlog"
)

// MessageReadModelMongo mantiene la proyección de lectura de mensajes.
// Como Props lleva el snapshot completo del DTO, cada evento basta por sí
// solo para el upsert: no hace falta estado previo.
type MessageReadModelMongo struct {
	coll *mongo.Collection
}

func NewMessageReadModelMongo(ctx context.Context, client *mongo.Client, dbName string) (*MessageReadModelMongo, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return &MessageReadModelMongo{
		coll: client.Database(dbName).Collection("messages"),
	}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoMessage struct {
	ID            string     `bson:"_id"`
	Tenant        string     `bson:"tenant"`
	Channel       string     `bson:"channel"`
	TemplateID    string     `bson:"templateId,omitempty"`
	Content       string     `bson:"content"`
	Status        string     `bson:"status"`
	ScheduledAt   *time.Time `bson:"scheduledAt,omitempty"`
	Priority      *int       `bson:"priority,omitempty"`
	CorrelationID string     `bson:"correlationId"`
	RetryCount    int        `bson:"retryCount"`
	FailureReason string     `bson:"failureReason,omitempty"`
	CreatedAt     time.Time  `bson:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt"`
}

func toMongo(dto messageDomain.MessageDTO) mongoMessage {
	return mongoMessage{
		ID:            dto.ID.String(),
		Tenant:        dto.Tenant,
		Channel:       dto.Channel,
		TemplateID:    dto.TemplateID,
		Content:       dto.Content,
		Status:        string(dto.Status),
		ScheduledAt:   dto.ScheduledAt,
		Priority:      dto.Priority,
		CorrelationID: dto.CorrelationID,
		RetryCount:    dto.RetryCount,
		FailureReason: dto.FailureReason,
		CreatedAt:     dto.CreatedAt,
		UpdatedAt:     dto.UpdatedAt,
	}
}

func toDTO(doc mongoMessage) (*messageDomain.MessageDTO, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, err
	}
	return &messageDomain.MessageDTO{
		ID:            id,
		Tenant:        doc.Tenant,
		Channel:       doc.Channel,
		TemplateID:    doc.TemplateID,
		Content:       doc.Content,
		Status:        sharedDomain.Status(doc.Status),
		ScheduledAt:   doc.ScheduledAt,
		Priority:      doc.Priority,
		CorrelationID: doc.CorrelationID,
		RetryCount:    doc.RetryCount,
		FailureReason: doc.FailureReason,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func (r *MessageReadModelMongo) Upsert(ctx context.Context, dto messageDomain.MessageDTO) error {
	filter := bson.M{"_id": dto.ID.String()}
	update := bson.M{"$set": toMongo(dto)}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert message read model: %w", err)
	}
	return nil
}

func (r *MessageReadModelMongo) GetByID(ctx context.Context, id uuid.UUID) (*messageDomain.MessageDTO, error) {
	var doc mongoMessage
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, messageDomain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDTO(doc)
}

// Projection adapta el read model al router: decodifica el snapshot de
// Props y hace el upsert.
func (r *MessageReadModelMongo) Projection() func(ctx context.Context, rec eventlog.RecordedEvent) error {
	return func(ctx context.Context, rec eventlog.RecordedEvent) error {
		if eventlog.CategoryOf(rec.Stream) != fmt.Sprintf("%s.%s.%s", messageDomain.BoundedContext, messageDomain.AggregateType, messageDomain.AggregateVersion) {
			return nil
		}
		var dto messageDomain.MessageDTO
		if err := json.Unmarshal(rec.Event.Props, &dto); err != nil {
			return err
		}
		return r.Upsert(ctx, dto)
	}
}

// Verificación estática
var _ messageDomain.ReadModel = (*MessageReadModelMongo)(nil)
