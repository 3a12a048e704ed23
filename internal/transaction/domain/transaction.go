package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// Transaction es el agregado de transacción: una transferencia cuyo
// asentamiento se entrega como job diferido. Mismo contrato de transición
// que Message: actor obligatorio, validación sobre borrador, un evento por
// cambio observable.
type Transaction struct {
	sharedDomain.EventRecorder

	id            uuid.UUID
	tenant        string
	fromAccount   string
	toAccount     string
	amount        decimal.Decimal
	currency      string
	status        sharedDomain.Status
	scheduledAt   *time.Time
	priority      *int
	correlationID string
	retryCount    int
	failureReason string
	createdAt     time.Time
	updatedAt     time.Time
}

type TransactionDTO struct {
	ID            uuid.UUID           `json:"id"`
	Tenant        string              `json:"tenant"`
	FromAccount   string              `json:"from_account"`
	ToAccount     string              `json:"to_account"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Status        sharedDomain.Status `json:"status"`
	ScheduledAt   *time.Time          `json:"scheduled_at,omitempty"`
	Priority      *int                `json:"priority,omitempty"`
	CorrelationID string              `json:"correlation_id"`
	RetryCount    int                 `json:"retry_count"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type NewTransactionParams struct {
	FromAccount   string
	ToAccount     string
	Amount        decimal.Decimal
	Currency      string
	ScheduledAt   *time.Time
	Priority      *int
	CorrelationID string
}

func NewTransaction(actor sharedDomain.Actor, params NewTransactionParams) (*Transaction, error) {
	if actor.IsZero() {
		return nil, sharedDomain.ErrActorRequired
	}
	now := time.Now().UTC()

	status := sharedDomain.StatusPending
	if params.ScheduledAt != nil && params.ScheduledAt.After(now) {
		status = sharedDomain.StatusScheduled
	}
	correlationID := params.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	t := &Transaction{
		id:            uuid.New(),
		tenant:        actor.Tenant,
		fromAccount:   params.FromAccount,
		toAccount:     params.ToAccount,
		amount:        params.Amount,
		currency:      params.Currency,
		status:        status,
		scheduledAt:   params.ScheduledAt,
		priority:      params.Priority,
		correlationID: correlationID,
		createdAt:     now,
		updatedAt:     now,
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	if err := t.Record(TransactionCreated, t.id.String(), actor, t.correlationID, t.DTO()); err != nil {
		return nil, err
	}
	return t, nil
}

// ---------- Getters ----------

func (t *Transaction) AggregateID() string     { return t.id.String() }
func (t *Transaction) AggregateTenant() string { return t.tenant }
func (t *Transaction) ID() uuid.UUID           { return t.id }
func (t *Transaction) Amount() decimal.Decimal { return t.amount }
func (t *Transaction) Status() sharedDomain.Status { return t.status }
func (t *Transaction) ScheduledAt() *time.Time { return t.scheduledAt }
func (t *Transaction) Priority() *int          { return t.priority }
func (t *Transaction) CorrelationID() string   { return t.correlationID }
func (t *Transaction) RetryCount() int         { return t.retryCount }
func (t *Transaction) FailureReason() string   { return t.failureReason }

func (t *Transaction) DTO() TransactionDTO {
	return TransactionDTO{
		ID:            t.id,
		Tenant:        t.tenant,
		FromAccount:   t.fromAccount,
		ToAccount:     t.toAccount,
		Amount:        t.amount,
		Currency:      t.currency,
		Status:        t.status,
		ScheduledAt:   t.scheduledAt,
		Priority:      t.priority,
		CorrelationID: t.correlationID,
		RetryCount:    t.retryCount,
		FailureReason: t.failureReason,
		CreatedAt:     t.createdAt,
		UpdatedAt:     t.updatedAt,
	}
}

// ---------- Transiciones ----------

func (t *Transaction) transition(actor sharedDomain.Actor, eventType string, mutate func(*Transaction)) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	draft := *t
	mutate(&draft)
	draft.updatedAt = time.Now().UTC()
	if err := draft.validate(); err != nil {
		return err
	}
	*t = draft
	return t.Record(eventType, t.id.String(), actor, t.correlationID, t.DTO())
}

func (t *Transaction) UpdateStatus(actor sharedDomain.Actor, next sharedDomain.Status) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if next == t.status {
		return nil
	}
	if !next.IsValid() || !t.status.CanTransitionTo(next) {
		return &sharedDomain.InvariantError{
			Aggregate: "transaction",
			Reason:    "invalid status transition " + string(t.status) + " → " + string(next),
		}
	}
	return t.transition(actor, TransactionStatusUpdated, func(d *Transaction) {
		d.status = next
	})
}

// Complete asienta la transacción. No-op si ya está en SUCCESS; solo se
// llega a SUCCESS desde PROCESSING.
func (t *Transaction) Complete(actor sharedDomain.Actor) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if t.status == sharedDomain.StatusSuccess {
		return nil
	}
	if !t.status.CanTransitionTo(sharedDomain.StatusSuccess) {
		return &sharedDomain.InvariantError{
			Aggregate: "transaction",
			Reason:    "invalid status transition " + string(t.status) + " → " + string(sharedDomain.StatusSuccess),
		}
	}
	return t.transition(actor, TransactionCompleted, func(d *Transaction) {
		d.status = sharedDomain.StatusSuccess
		d.failureReason = ""
	})
}

func (t *Transaction) MarkForRetry(actor sharedDomain.Actor, reason string, nextRetryAt *time.Time) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if !t.status.CanTransitionTo(sharedDomain.StatusRetrying) {
		return &sharedDomain.InvariantError{
			Aggregate: "transaction",
			Reason:    "invalid status transition " + string(t.status) + " → " + string(sharedDomain.StatusRetrying),
		}
	}
	if nextRetryAt == nil {
		at := time.Now().UTC().Add(60 * time.Second)
		nextRetryAt = &at
	}
	return t.transition(actor, TransactionRetryScheduled, func(d *Transaction) {
		d.status = sharedDomain.StatusRetrying
		d.retryCount++
		d.failureReason = reason
		d.scheduledAt = nextRetryAt
	})
}

func (t *Transaction) MarkAsFailed(actor sharedDomain.Actor, reason string) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if t.status == sharedDomain.StatusFailed {
		return nil
	}
	if !t.status.CanTransitionTo(sharedDomain.StatusFailed) {
		return &sharedDomain.InvariantError{
			Aggregate: "transaction",
			Reason:    "invalid status transition " + string(t.status) + " → " + string(sharedDomain.StatusFailed),
		}
	}
	return t.transition(actor, TransactionFailed, func(d *Transaction) {
		d.status = sharedDomain.StatusFailed
		d.failureReason = reason
	})
}

func (t *Transaction) Cancel(actor sharedDomain.Actor) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if t.status == sharedDomain.StatusCancelled {
		return nil
	}
	if !t.status.CanTransitionTo(sharedDomain.StatusCancelled) {
		return &sharedDomain.InvariantError{Aggregate: "transaction", Reason: "cannot cancel from " + string(t.status)}
	}
	return t.transition(actor, TransactionCancelled, func(d *Transaction) {
		d.status = sharedDomain.StatusCancelled
	})
}

// ---------- Invariantes ----------

func (t *Transaction) validate() error {
	if t.id == uuid.Nil {
		return &sharedDomain.ValidationError{Field: "id", Reason: "required"}
	}
	if t.tenant == "" {
		return &sharedDomain.ValidationError{Field: "tenant", Reason: "required"}
	}
	if t.fromAccount == "" {
		return &sharedDomain.ValidationError{Field: "from_account", Reason: "required"}
	}
	if t.toAccount == "" {
		return &sharedDomain.ValidationError{Field: "to_account", Reason: "required"}
	}
	if t.fromAccount == t.toAccount {
		return &sharedDomain.InvariantError{Aggregate: "transaction", Reason: "from and to accounts must differ"}
	}
	if !t.amount.IsPositive() {
		return &sharedDomain.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if t.currency == "" {
		return &sharedDomain.ValidationError{Field: "currency", Reason: "required"}
	}
	if !t.status.IsValid() {
		return &sharedDomain.InvariantError{Aggregate: "transaction", Reason: "unknown status " + string(t.status)}
	}
	if t.retryCount < 0 {
		return &sharedDomain.InvariantError{Aggregate: "transaction", Reason: "negative retry count"}
	}
	return nil
}

// ---------- Rehidratación ----------

func NewEmptyTransaction(id string) *Transaction {
	parsed, _ := uuid.Parse(id)
	return &Transaction{id: parsed}
}

func (t *Transaction) restoreDTO(dto TransactionDTO) {
	t.id = dto.ID
	t.tenant = dto.Tenant
	t.fromAccount = dto.FromAccount
	t.toAccount = dto.ToAccount
	t.amount = dto.Amount
	t.currency = dto.Currency
	t.status = dto.Status
	t.scheduledAt = dto.ScheduledAt
	t.priority = dto.Priority
	t.correlationID = dto.CorrelationID
	t.retryCount = dto.RetryCount
	t.failureReason = dto.FailureReason
	t.createdAt = dto.CreatedAt
	t.updatedAt = dto.UpdatedAt
}

func (t *Transaction) Apply(evt sharedEvents.DomainEvent) error {
	var dto TransactionDTO
	if err := json.Unmarshal(evt.Props, &dto); err != nil {
		return err
	}
	t.restoreDTO(dto)
	return nil
}

func (t *Transaction) Restore(state json.RawMessage) error {
	var dto TransactionDTO
	if err := json.Unmarshal(state, &dto); err != nil {
		return err
	}
	t.restoreDTO(dto)
	return nil
}

func (t *Transaction) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(t.DTO())
}
