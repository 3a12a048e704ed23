package mocks

import (
	"context"
	"sync"

	"github.com/davicafu/eventflow/internal/shared/queue"
)

// CapturingQueue es un fake de cola que solo registra los jobs encolados,
// sin runtime: los tests inspeccionan Enqueued y ejecutan los handlers a mano.
type CapturingQueue struct {
	mu       sync.Mutex
	Enqueued []queue.Job
	handlers map[string]queue.Handler
	paused   map[string]bool
	failed   map[string][]queue.Job
}

// Verificación estática
var _ queue.Queue = (*CapturingQueue)(nil)

func NewCapturingQueue() *CapturingQueue {
	return &CapturingQueue{
		handlers: make(map[string]queue.Handler),
		paused:   make(map[string]bool),
		failed:   make(map[string][]queue.Job),
	}
}

func (q *CapturingQueue) Enqueue(ctx context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Enqueued = append(q.Enqueued, job)
	return nil
}

func (q *CapturingQueue) Consume(name string, h queue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

func (q *CapturingQueue) Start(ctx context.Context) {}
func (q *CapturingQueue) Stop()                     {}

func (q *CapturingQueue) Pause(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused[name] = true
}

func (q *CapturingQueue) Resume(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused[name] = false
}

func (q *CapturingQueue) Stats(ctx context.Context, name string) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pending int64
	for _, j := range q.Enqueued {
		if j.Queue == name {
			pending++
		}
	}
	return queue.Stats{
		Queue:   name,
		Pending: pending,
		Failed:  int64(len(q.failed[name])),
		Paused:  q.paused[name],
	}, nil
}

func (q *CapturingQueue) FailedJobs(ctx context.Context, name string) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.failed[name]...), nil
}

// Jobs devuelve una copia de lo encolado hasta ahora.
func (q *CapturingQueue) Jobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.Enqueued...)
}
