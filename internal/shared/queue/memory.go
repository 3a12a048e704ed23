package queue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MemoryQueue es el runtime en memoria: un heap de retrasados por readyAt y
// un heap de listos por (priority, orden de llegada), con un pool de workers.
type MemoryQueue struct {
	mu       sync.Mutex
	delayed  delayedHeap
	ready    readyHeap
	seq      uint64
	handlers map[string]Handler
	paused   map[string]bool
	failed   map[string][]Job

	active    int64
	completed int64

	workers int
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	log     *zap.Logger
}

func NewMemoryQueue(workers int, log *zap.Logger) *MemoryQueue {
	if workers <= 0 {
		workers = 4
	}
	return &MemoryQueue{
		handlers: make(map[string]Handler),
		paused:   make(map[string]bool),
		failed:   make(map[string][]Job),
		workers:  workers,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		log:      log,
	}
}

type queuedJob struct {
	job     Job
	readyAt time.Time
	seq     uint64 // desempate FIFO
}

type delayedHeap []*queuedJob

func (h delayedHeap) Len() int            { return len(h) }
func (h delayedHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h delayedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayedHeap) Push(x interface{}) { *h = append(*h, x.(*queuedJob)) }
func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type readyHeap []*queuedJob

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority < h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(*queuedJob)) }
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	q.seq++
	item := &queuedJob{job: job, seq: q.seq, readyAt: time.Now().Add(job.Delay)}
	if job.Delay > 0 {
		heap.Push(&q.delayed, item)
	} else {
		heap.Push(&q.ready, item)
	}
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *MemoryQueue) Consume(queue string, h Handler) {
	q.mu.Lock()
	q.handlers[queue] = h
	q.mu.Unlock()
}

func (q *MemoryQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	jobs := make(chan Job)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range jobs {
				q.run(ctx, job)
			}
		}()
	}

	// dispatcher: mueve retrasados a listos cuando vence su readyAt y
	// entrega los listos por prioridad al pool
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(jobs)
		for {
			job, wait, ok := q.next()
			if ok {
				select {
				case jobs <- job:
					continue
				case <-q.stop:
					return
				case <-ctx.Done():
					return
				}
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-q.wake:
				timer.Stop()
			case <-q.stop:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

// next devuelve el siguiente job elegible, o cuánto esperar si no hay ninguno.
func (q *MemoryQueue) next() (Job, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for q.delayed.Len() > 0 && !q.delayed[0].readyAt.After(now) {
		heap.Push(&q.ready, heap.Pop(&q.delayed))
	}

	// las colas pausadas retienen sus jobs listos
	var skipped []*queuedJob
	for q.ready.Len() > 0 {
		item := heap.Pop(&q.ready).(*queuedJob)
		if q.paused[item.job.Queue] {
			skipped = append(skipped, item)
			continue
		}
		for _, s := range skipped {
			heap.Push(&q.ready, s)
		}
		return item.job, 0, true
	}
	for _, s := range skipped {
		heap.Push(&q.ready, s)
	}

	wait := 500 * time.Millisecond
	if q.delayed.Len() > 0 {
		if d := time.Until(q.delayed[0].readyAt); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return Job{}, wait, false
}

func (q *MemoryQueue) run(ctx context.Context, job Job) {
	q.mu.Lock()
	h := q.handlers[job.Queue]
	q.mu.Unlock()
	if h == nil {
		q.log.Warn("⚠️ No hay handler registrado para la cola", zap.String("queue", job.Queue))
		return
	}

	atomic.AddInt64(&q.active, 1)
	err := h(ctx, job)
	atomic.AddInt64(&q.active, -1)

	if err != nil {
		q.log.Warn("⚠️ Job fallido",
			zap.String("queue", job.Queue),
			zap.String("job", job.Name),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		q.mu.Lock()
		q.failed[job.Queue] = append(q.failed[job.Queue], job)
		q.mu.Unlock()
		return
	}
	atomic.AddInt64(&q.completed, 1)
}

func (q *MemoryQueue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

func (q *MemoryQueue) Pause(queue string) {
	q.mu.Lock()
	q.paused[queue] = true
	q.mu.Unlock()
}

func (q *MemoryQueue) Resume(queue string) {
	q.mu.Lock()
	q.paused[queue] = false
	q.mu.Unlock()
	q.notify()
}

func (q *MemoryQueue) Stats(ctx context.Context, queue string) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending, delayed int64
	for _, item := range q.ready {
		if item.job.Queue == queue {
			pending++
		}
	}
	for _, item := range q.delayed {
		if item.job.Queue == queue {
			delayed++
		}
	}
	return Stats{
		Queue:     queue,
		Pending:   pending,
		Delayed:   delayed,
		Active:    atomic.LoadInt64(&q.active),
		Completed: atomic.LoadInt64(&q.completed),
		Failed:    int64(len(q.failed[queue])),
		Paused:    q.paused[queue],
	}, nil
}

func (q *MemoryQueue) FailedJobs(ctx context.Context, queue string) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.failed[queue]...), nil
}

// Verificación estática
var _ Queue = (*MemoryQueue)(nil)
