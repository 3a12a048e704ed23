package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/eventflow/internal/message/domain"
	sharedCache "github.com/davicafu/eventflow/internal/shared/cache"
	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/shared/queue"
	"github.com/davicafu/eventflow/internal/shared/repository"
	"github.com/davicafu/eventflow/internal/shared/utils"
)

// MessageService define los casos de uso del agregado Message, incluido el
// ciclo de vida que consume el orquestador de entrega. Todo camino de
// mutación pasa por el candado por id: un solo load-mutate-save en vuelo
// por agregado.
type MessageService struct {
	repo      *repository.Repository
	transport domain.Transport
	renderer  domain.Renderer
	cache     sharedCache.Cache
	locks     *repository.KeyedMutex
	log       *zap.Logger
}

func NewMessageService(repo *repository.Repository, transport domain.Transport, renderer domain.Renderer, cache sharedCache.Cache, log *zap.Logger) *MessageService {
	return &MessageService{
		repo:      repo,
		transport: transport,
		renderer:  renderer,
		cache:     cache,
		locks:     repository.NewKeyedMutex(),
		log:       log,
	}
}

type CreateMessageParams struct {
	Channel       string
	TemplateID    string
	Content       string
	Payload       map[string]interface{}
	ScheduledAt   *time.Time
	Priority      *int
	CorrelationID string
}

// CreateMessage construye el agregado vía su factoría (que graba el evento
// Created) y lo persiste: el router observará el evento y encolará el job.
func (s *MessageService) CreateMessage(ctx context.Context, actor sharedDomain.Actor, params CreateMessageParams) (*domain.MessageDTO, error) {
	content := params.Content
	if params.TemplateID != "" && s.renderer != nil {
		rendered, err := s.renderer.Render(ctx, params.TemplateID, params.Payload)
		if err != nil {
			return nil, err
		}
		content = rendered
	}

	msg, err := domain.NewMessage(actor, domain.NewMessageParams{
		Channel:       params.Channel,
		TemplateID:    params.TemplateID,
		Content:       content,
		ScheduledAt:   params.ScheduledAt,
		Priority:      params.Priority,
		CorrelationID: params.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, actor, msg); err != nil {
		return nil, err
	}

	dto := msg.DTO()
	s.cacheSet(dto)
	return &dto, nil
}

// GetMessage lee primero de caché y si no, rehidrata desde el stream.
func (s *MessageService) GetMessage(ctx context.Context, actor sharedDomain.Actor, id uuid.UUID) (*domain.MessageDTO, error) {
	if s.cache != nil {
		var dto domain.MessageDTO
		if ok, _ := s.cache.Get(ctx, domain.MessageCacheKeyByID(id), &dto); ok {
			return &dto, nil
		}
	}

	var msg *domain.Message
	err := utils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		agg, err := s.repo.Load(ctx, actor, id.String())
		if err != nil {
			return err
		}
		msg = agg.(*domain.Message)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := msg.DTO()
	s.cacheSet(dto)
	return &dto, nil
}

func (s *MessageService) CancelMessage(ctx context.Context, actor sharedDomain.Actor, id uuid.UUID) error {
	return s.mutate(ctx, actor, id.String(), func(msg *domain.Message) error {
		return msg.Cancel(actor)
	})
}

// ---------- Ciclo de vida para el orquestador ----------

// Deliver es el ejecutor del job "message.deliver": marca el agregado en
// PROCESSING (el paso intermedio de la máquina de estados), persiste ese
// evento y hace la llamada al transporte. Sobre un estado terminal es un
// no-op: la re-entrega de un job ya completado o cancelado no reenvía nada.
func (s *MessageService) Deliver(ctx context.Context, job queue.Job) error {
	actor := sharedDomain.Actor{SubjectID: job.Data.ActorID, Tenant: job.Data.Tenant}
	if actor.SubjectID == "" {
		actor.SubjectID = "delivery-worker"
	}

	var msg *domain.Message
	err := s.mutate(ctx, actor, job.Data.AggregateID, func(m *domain.Message) error {
		if m.Status().IsTerminal() {
			return nil
		}
		if err := m.UpdateStatus(actor, sharedDomain.StatusProcessing); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil || msg == nil {
		return err
	}

	_, err = s.transport.Send(ctx, msg.Channel(), msg.Content())
	return err
}

func (s *MessageService) Complete(ctx context.Context, actor sharedDomain.Actor, aggregateID string) error {
	return s.mutate(ctx, actor, aggregateID, func(msg *domain.Message) error {
		return msg.Complete(actor, nil)
	})
}

func (s *MessageService) MarkForRetry(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string, nextRetryAt time.Time) error {
	return s.mutate(ctx, actor, aggregateID, func(msg *domain.Message) error {
		return msg.MarkForRetry(actor, reason, &nextRetryAt)
	})
}

func (s *MessageService) MarkAsFailed(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string) error {
	return s.mutate(ctx, actor, aggregateID, func(msg *domain.Message) error {
		return msg.MarkAsFailed(actor, reason)
	})
}

// mutate serializa el ciclo load-mutate-save por id de agregado.
func (s *MessageService) mutate(ctx context.Context, actor sharedDomain.Actor, id string, fn func(*domain.Message) error) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	agg, err := s.repo.Load(ctx, actor, id)
	if err != nil {
		return err
	}
	msg := agg.(*domain.Message)

	if err := fn(msg); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, actor, msg); err != nil {
		return err
	}

	s.cacheSet(msg.DTO())
	return nil
}

// cacheSet actualiza la caché en background sin bloquear la respuesta.
func (s *MessageService) cacheSet(dto domain.MessageDTO) {
	if s.cache == nil {
		return
	}
	go func() {
		ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := s.cache.Set(ctxCache, domain.MessageCacheKeyByID(dto.ID), dto, 60); err != nil {
			s.log.Warn("⚠️ Cache update failed", zap.String("message_id", dto.ID.String()), zap.Error(err))
		}
	}()
}
