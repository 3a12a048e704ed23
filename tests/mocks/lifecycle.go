package mocks

import (
	"context"
	"sync"
	"time"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

// LifecycleCall registra una invocación sobre el ciclo de vida del agregado.
type LifecycleCall struct {
	Method      string // "Complete" | "MarkForRetry" | "MarkAsFailed"
	AggregateID string
	Reason      string
	NextRetryAt time.Time
}

// RecordingLifecycle es un fake del ciclo de vida que solo anota las llamadas.
type RecordingLifecycle struct {
	mu    sync.Mutex
	Calls []LifecycleCall
	Err   error // si se fija, todas las llamadas lo devuelven
}

func (l *RecordingLifecycle) Complete(ctx context.Context, actor sharedDomain.Actor, aggregateID string) error {
	l.record(LifecycleCall{Method: "Complete", AggregateID: aggregateID})
	return l.Err
}

func (l *RecordingLifecycle) MarkForRetry(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string, nextRetryAt time.Time) error {
	l.record(LifecycleCall{Method: "MarkForRetry", AggregateID: aggregateID, Reason: reason, NextRetryAt: nextRetryAt})
	return l.Err
}

func (l *RecordingLifecycle) MarkAsFailed(ctx context.Context, actor sharedDomain.Actor, aggregateID, reason string) error {
	l.record(LifecycleCall{Method: "MarkAsFailed", AggregateID: aggregateID, Reason: reason})
	return l.Err
}

func (l *RecordingLifecycle) record(c LifecycleCall) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, c)
}

// Recorded devuelve una copia de las llamadas anotadas.
func (l *RecordingLifecycle) Recorded() []LifecycleCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LifecycleCall(nil), l.Calls...)
}
