package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// Message es el agregado de mensaje saliente (Slack, e-mail...). Su estado
// persistido es siempre el left-fold de todos sus eventos en orden de
// emisión: ningún campo se toca por un camino que no pase por un método de
// transición, así cada cambio observable tiene su evento.
type Message struct {
	sharedDomain.EventRecorder

	id            uuid.UUID
	tenant        string
	channel       string
	templateID    string
	content       string
	status        sharedDomain.Status
	scheduledAt   *time.Time
	priority      *int
	correlationID string
	retryCount    int
	failureReason string
	createdAt     time.Time
	updatedAt     time.Time
}

// MessageDTO es la forma pública del agregado. Viaja completa en Props de
// cada evento (snapshot, no diff) y es lo que exponen los handlers HTTP.
type MessageDTO struct {
	ID            uuid.UUID           `json:"id"`
	Tenant        string              `json:"tenant"`
	Channel       string              `json:"channel"`
	TemplateID    string              `json:"template_id,omitempty"`
	Content       string              `json:"content"`
	Status        sharedDomain.Status `json:"status"`
	ScheduledAt   *time.Time          `json:"scheduled_at,omitempty"`
	Priority      *int                `json:"priority,omitempty"`
	CorrelationID string              `json:"correlation_id"`
	RetryCount    int                 `json:"retry_count"`
	FailureReason string              `json:"failure_reason,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type NewMessageParams struct {
	Channel       string
	TemplateID    string
	Content       string
	ScheduledAt   *time.Time
	Priority      *int
	CorrelationID string
}

// NewMessage es la factoría: valida, fija el estado inicial y graba el único
// evento de creación. Si hay programación futura nace SCHEDULED; si no,
// PENDING (elegible para entrega inmediata). El snapshot del evento Created
// ya refleja ese estado: la creación emite exactamente un evento.
func NewMessage(actor sharedDomain.Actor, params NewMessageParams) (*Message, error) {
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

	m := &Message{
		id:            uuid.New(),
		tenant:        actor.Tenant,
		channel:       params.Channel,
		templateID:    params.TemplateID,
		content:       params.Content,
		status:        status,
		scheduledAt:   params.ScheduledAt,
		priority:      params.Priority,
		correlationID: correlationID,
		createdAt:     now,
		updatedAt:     now,
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := m.Record(MessageCreated, m.id.String(), actor, m.correlationID, m.DTO()); err != nil {
		return nil, err
	}
	return m, nil
}

// ---------- Getters ----------

func (m *Message) AggregateID() string     { return m.id.String() }
func (m *Message) AggregateTenant() string { return m.tenant }
func (m *Message) ID() uuid.UUID           { return m.id }
func (m *Message) Channel() string         { return m.channel }
func (m *Message) Content() string         { return m.content }
func (m *Message) Status() sharedDomain.Status { return m.status }
func (m *Message) ScheduledAt() *time.Time { return m.scheduledAt }
func (m *Message) Priority() *int          { return m.priority }
func (m *Message) CorrelationID() string   { return m.correlationID }
func (m *Message) RetryCount() int         { return m.retryCount }
func (m *Message) FailureReason() string   { return m.failureReason }

func (m *Message) DTO() MessageDTO {
	return MessageDTO{
		ID:            m.id,
		Tenant:        m.tenant,
		Channel:       m.channel,
		TemplateID:    m.templateID,
		Content:       m.content,
		Status:        m.status,
		ScheduledAt:   m.scheduledAt,
		Priority:      m.priority,
		CorrelationID: m.correlationID,
		RetryCount:    m.retryCount,
		FailureReason: m.failureReason,
		CreatedAt:     m.createdAt,
		UpdatedAt:     m.updatedAt,
	}
}

// ---------- Transiciones ----------

// transition aplica la mutación sobre una copia borrador, la valida y solo
// entonces la consolida y graba el evento: el agregado en memoria nunca
// queda a medias si la validación falla (no hay rollback tras un append).
func (m *Message) transition(actor sharedDomain.Actor, eventType string, mutate func(*Message)) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	draft := *m
	mutate(&draft)
	draft.updatedAt = time.Now().UTC()
	if err := draft.validate(); err != nil {
		return err
	}
	*m = draft
	return m.Record(eventType, m.id.String(), actor, m.correlationID, m.DTO())
}

// UpdateStatus es idempotente: el mismo estado otra vez es un no-op sin
// evento, para que la entrega at-least-once de comandos de estado sea segura.
func (m *Message) UpdateStatus(actor sharedDomain.Actor, next sharedDomain.Status) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if next == m.status {
		return nil
	}
	if !next.IsValid() || !m.status.CanTransitionTo(next) {
		return &sharedDomain.InvariantError{
			Aggregate: "message",
			Reason:    "invalid status transition " + string(m.status) + " → " + string(next),
		}
	}
	return m.transition(actor, MessageStatusUpdated, func(d *Message) {
		d.status = next
	})
}

// Complete marca la entrega como conseguida. Si ya está en SUCCESS es un
// no-op: la re-entrega de un job ya completado no produce efectos. Solo se
// llega a SUCCESS desde PROCESSING: el ejecutor marca el agregado en curso
// antes de tocar el transporte.
func (m *Message) Complete(actor sharedDomain.Actor, providerTimestamp *time.Time) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if m.status == sharedDomain.StatusSuccess {
		return nil
	}
	if !m.status.CanTransitionTo(sharedDomain.StatusSuccess) {
		return &sharedDomain.InvariantError{
			Aggregate: "message",
			Reason:    "invalid status transition " + string(m.status) + " → " + string(sharedDomain.StatusSuccess),
		}
	}
	return m.transition(actor, MessageCompleted, func(d *Message) {
		d.status = sharedDomain.StatusSuccess
		d.failureReason = "" // la siguiente transición con éxito la limpia
	})
}

// MarkForRetry incrementa retryCount exactamente en 1 y pasa a RETRYING.
// Sin nextRetryAt explícito, por defecto ahora + 60s.
func (m *Message) MarkForRetry(actor sharedDomain.Actor, reason string, nextRetryAt *time.Time) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if !m.status.CanTransitionTo(sharedDomain.StatusRetrying) {
		return &sharedDomain.InvariantError{
			Aggregate: "message",
			Reason:    "invalid status transition " + string(m.status) + " → " + string(sharedDomain.StatusRetrying),
		}
	}
	if nextRetryAt == nil {
		t := time.Now().UTC().Add(60 * time.Second)
		nextRetryAt = &t
	}
	return m.transition(actor, MessageRetryScheduled, func(d *Message) {
		d.status = sharedDomain.StatusRetrying
		d.retryCount++
		d.failureReason = reason
		d.scheduledAt = nextRetryAt
	})
}

// MarkAsFailed termina el ciclo de vida en FAILED con motivo legible.
func (m *Message) MarkAsFailed(actor sharedDomain.Actor, reason string) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if m.status == sharedDomain.StatusFailed {
		return nil
	}
	if !m.status.CanTransitionTo(sharedDomain.StatusFailed) {
		return &sharedDomain.InvariantError{
			Aggregate: "message",
			Reason:    "invalid status transition " + string(m.status) + " → " + string(sharedDomain.StatusFailed),
		}
	}
	return m.transition(actor, MessageFailed, func(d *Message) {
		d.status = sharedDomain.StatusFailed
		d.failureReason = reason
	})
}

func (m *Message) Cancel(actor sharedDomain.Actor) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if m.status == sharedDomain.StatusCancelled {
		return nil
	}
	if !m.status.CanTransitionTo(sharedDomain.StatusCancelled) {
		return &sharedDomain.InvariantError{Aggregate: "message", Reason: "cannot cancel from " + string(m.status)}
	}
	return m.transition(actor, MessageCancelled, func(d *Message) {
		d.status = sharedDomain.StatusCancelled
	})
}

// UpdateCorrelationID compara valor y solo emite evento si cambió.
// emitEvent=false cubre la hidratación desde el repositorio.
func (m *Message) UpdateCorrelationID(actor sharedDomain.Actor, correlationID string, emitEvent bool) error {
	if actor.IsZero() {
		return sharedDomain.ErrActorRequired
	}
	if correlationID == m.correlationID {
		return nil
	}
	if !emitEvent {
		m.correlationID = correlationID
		return nil
	}
	return m.transition(actor, MessageStatusUpdated, func(d *Message) {
		d.correlationID = correlationID
	})
}

// ---------- Invariantes ----------

func (m *Message) validate() error {
	if m.id == uuid.Nil {
		return &sharedDomain.ValidationError{Field: "id", Reason: "required"}
	}
	if m.tenant == "" {
		return &sharedDomain.ValidationError{Field: "tenant", Reason: "required"}
	}
	if m.channel == "" {
		return &sharedDomain.ValidationError{Field: "channel", Reason: "required"}
	}
	if m.content == "" {
		return &sharedDomain.ValidationError{Field: "content", Reason: "required"}
	}
	if !m.status.IsValid() {
		return &sharedDomain.InvariantError{Aggregate: "message", Reason: "unknown status " + string(m.status)}
	}
	if m.retryCount < 0 {
		return &sharedDomain.InvariantError{Aggregate: "message", Reason: "negative retry count"}
	}
	return nil
}

// ---------- Rehidratación ----------

// NewEmptyMessage devuelve un agregado vacío listo para Apply/Restore.
func NewEmptyMessage(id string) *Message {
	parsed, _ := uuid.Parse(id)
	return &Message{id: parsed}
}

func (m *Message) restoreDTO(dto MessageDTO) {
	m.id = dto.ID
	m.tenant = dto.Tenant
	m.channel = dto.Channel
	m.templateID = dto.TemplateID
	m.content = dto.Content
	m.status = dto.Status
	m.scheduledAt = dto.ScheduledAt
	m.priority = dto.Priority
	m.correlationID = dto.CorrelationID
	m.retryCount = dto.RetryCount
	m.failureReason = dto.FailureReason
	m.createdAt = dto.CreatedAt
	m.updatedAt = dto.UpdatedAt
}

// Apply rehidrata desde un evento persistido. Props es el snapshot completo
// del DTO, así que cada evento basta por sí solo.
func (m *Message) Apply(evt sharedEvents.DomainEvent) error {
	var dto MessageDTO
	if err := json.Unmarshal(evt.Props, &dto); err != nil {
		return err
	}
	m.restoreDTO(dto)
	return nil
}

func (m *Message) Restore(state json.RawMessage) error {
	var dto MessageDTO
	if err := json.Unmarshal(state, &dto); err != nil {
		return err
	}
	m.restoreDTO(dto)
	return nil
}

func (m *Message) SnapshotState() (json.RawMessage, error) {
	return json.Marshal(m.DTO())
}
