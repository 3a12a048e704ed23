package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	sharedCache "github.com/davicafu/eventflow/internal/shared/cache"
	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	"github.com/davicafu/eventflow/internal/shared/queue"
	"github.com/davicafu/eventflow/internal/shared/repository"
	"github.com/davicafu/eventflow/internal/shared/utils"
	"github.com/davicafu/eventflow/internal/transaction/domain"
)

// TransactionService define los casos de uso del agregado Transaction y su
// ciclo de vida de asentamiento para el orquestador.
type TransactionService struct {
	repo    *repository.Repository
	settler domain.Settler
	cache   sharedCache.Cache
	locks   *repository.KeyedMutex
	log     *zap.Logger
}

func NewTransactionService(repo *repository.Repository, settler domain.Settler, cache sharedCache.Cache, log *zap.Logger) *TransactionService {
	return &TransactionService{
		repo:    repo,
		settler: settler,
		cache:   cache,
		locks:   repository.NewKeyedMutex(),
		log:     log,
	}
}

type CreateTransactionParams struct {
	FromAccount   string
	ToAccount     string
	Amount        decimal.Decimal
	Currency      string
	ScheduledAt   *time.Time
	Priority      *int
	CorrelationID string
}

func (s *TransactionService) CreateTransaction(ctx context.Context, actor sharedDomain.Actor, params CreateTransactionParams) (*domain.TransactionDTO, error) {
	tx, err := domain.NewTransaction(actor, domain.NewTransactionParams{
		FromAccount:   params.FromAccount,
		ToAccount:     params.ToAccount,
		Amount:        params.Amount,
		Currency:      params.Currency,
		ScheduledAt:   params.ScheduledAt,
		Priority:      params.Priority,
		CorrelationID: params.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, actor, tx); err != nil {
		return nil, err
	}

	dto := tx.DTO()
	s.cacheSet(dto)
	return &dto, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, actor sharedDomain.Actor, id uuid.UUID) (*domain.TransactionDTO, error) {
	if s.cache != nil {
		var dto domain.TransactionDTO
		if ok, _ := s.cache.Get(ctx, transactionCacheKey(id), &dto); ok {
			return &dto, nil
		}
	}

	var tx *domain.Transaction
	err := utils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		agg, err := s.repo.Load(ctx, actor, id.String())
		if err != nil {
			return err
		}
		tx = agg.(*domain.Transaction)
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := tx.DTO()
	s.cacheSet(dto)
	return &dto, nil
}

func (s *TransactionService) CancelTransaction(ctx context.Context, actor sharedDomain.Actor, id uuid.UUID) error {
	return s.mutate(ctx, actor, id.String(), func(tx *domain.Transaction) error {
		return tx.Cancel(actor)
	})
}

// ---------- Ciclo de vida para el orquestador ----------

// Settle es el ejecutor del job "transaction.settle": marca el agregado en
// PROCESSING antes de llamar al proveedor. Sobre un estado terminal es un
// no-op.
func (s *TransactionService) Settle(ctx context.Context, job queue.Job) error {
	actor := sharedDomain.Actor{SubjectID: job.Data.ActorID, Tenant: job.Data.Tenant}
	if actor.SubjectID == "" {
		actor.SubjectID = "settlement-worker"
	}

	var tx *domain.Transaction
	err := s.mutate(ctx, actor, job.Data.AggregateID, func(t *domain.Transaction) error {
		if t.Status().IsTerminal() {
			return nil
		}
		if err := t.UpdateStatus(actor, sharedDomain.StatusProcessing); err != nil {
			return err
		}
		tx = t
		return nil
	})
	if err != nil || tx == nil {
		return err
	}

	return s.settler.Settle(ctx, tx.DTO())
}

func (s *TransactionService) Complete(ctx context.Context, actor sharedDomain.Actor, aggregateID string) error {
	return s.mutate(ctx, actor, aggregateID, func(tx *domain.Transaction) error {
		return tx.Complete(actor)
	})
}

func (s *TransactionService) MarkForRetry(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string, nextRetryAt time.Time) error {
	return s.mutate(ctx, actor, aggregateID, func(tx *domain.Transaction) error {
		return tx.MarkForRetry(actor, reason, &nextRetryAt)
	})
}

func (s *TransactionService) MarkAsFailed(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string) error {
	return s.mutate(ctx, actor, aggregateID, func(tx *domain.Transaction) error {
		return tx.MarkAsFailed(actor, reason)
	})
}

func (s *TransactionService) mutate(ctx context.Context, actor sharedDomain.Actor, id string, fn func(*domain.Transaction) error) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	agg, err := s.repo.Load(ctx, actor, id)
	if err != nil {
		return err
	}
	tx := agg.(*domain.Transaction)

	if err := fn(tx); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, actor, tx); err != nil {
		return err
	}

	s.cacheSet(tx.DTO())
	return nil
}

func (s *TransactionService) cacheSet(dto domain.TransactionDTO) {
	if s.cache == nil {
		return
	}
	go func() {
		ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := s.cache.Set(ctxCache, transactionCacheKey(dto.ID), dto, 60); err != nil {
			s.log.Warn("⚠️ Cache update failed", zap.String("transaction_id", dto.ID.String()), zap.Error(err))
		}
	}()
}

func transactionCacheKey(id uuid.UUID) string {
	return "transaction:id:" + id.String()
}
