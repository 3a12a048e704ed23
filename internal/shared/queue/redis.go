package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
)

const (
	redisJobsPrefix   = "eventflow:jobs:"   // ZSET por cola
	redisFailedPrefix = "eventflow:failed:" // LIST por cola
	redisPausedPrefix = "eventflow:paused:" // flag por cola

	redisPollInterval = 200 * time.Millisecond
	// la prioridad se mezcla en el score: score = readyAt_ms*1000 + priority,
	// así ZPOP ordena primero por elegibilidad y luego por prioridad
	priorityRange = 1000
)

// RedisQueue es el runtime duradero sobre Redis: una ZSET por cola puntuada
// por (readyAt, priority). El claim de un job es el ZREM: solo un worker
// consigue eliminar la entrada, los demás pasan al siguiente.
type RedisQueue struct {
	client  *redis.Client
	workers int
	log     *zap.Logger

	mu       sync.Mutex
	handlers map[string]Handler

	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewRedisQueue(client *redis.Client, workers int, log *zap.Logger) *RedisQueue {
	if workers <= 0 {
		workers = 4
	}
	return &RedisQueue{
		client:   client,
		workers:  workers,
		log:      log,
		handlers: make(map[string]Handler),
		stop:     make(chan struct{}),
	}
}

func jobScore(readyAt time.Time, priority int) float64 {
	if priority < 0 {
		priority = 0
	}
	if priority >= priorityRange {
		priority = priorityRange - 1
	}
	return float64(readyAt.UnixMilli()*priorityRange + int64(priority))
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = q.client.ZAdd(ctx, redisJobsPrefix+job.Queue, &redis.Z{
		Score:  jobScore(time.Now().Add(job.Delay), job.Priority),
		Member: data,
	}).Err()
	if err != nil {
		return &sharedDomain.TransientError{Op: "queue.enqueue", Err: err}
	}
	return nil
}

func (q *RedisQueue) Consume(queue string, h Handler) {
	q.mu.Lock()
	q.handlers[queue] = h
	q.mu.Unlock()
}

func (q *RedisQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	queues := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		queues = append(queues, name)
	}
	q.mu.Unlock()

	for _, name := range queues {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.consumeLoop(ctx, name)
		}
	}
}

func (q *RedisQueue) consumeLoop(ctx context.Context, queue string) {
	defer q.wg.Done()
	ticker := time.NewTicker(redisPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-ticker.C:
			q.pollOnce(ctx, queue)
		}
	}
}

func (q *RedisQueue) pollOnce(ctx context.Context, queue string) {
	paused, _ := q.client.Get(ctx, redisPausedPrefix+queue).Result()
	if paused == "1" {
		return
	}

	maxScore := fmt.Sprintf("%d", time.Now().UnixMilli()*priorityRange+(priorityRange-1))
	members, err := q.client.ZRangeByScore(ctx, redisJobsPrefix+queue, &redis.ZRangeBy{
		Min: "-inf", Max: maxScore, Count: 1,
	}).Result()
	if err != nil || len(members) == 0 {
		return
	}

	// el ZREM es el claim: solo un worker elimina la entrada
	removed, err := q.client.ZRem(ctx, redisJobsPrefix+queue, members[0]).Result()
	if err != nil || removed == 0 {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(members[0]), &job); err != nil {
		q.log.Error("Payload de job inválido, descartado", zap.String("queue", queue), zap.Error(err))
		return
	}

	q.mu.Lock()
	h := q.handlers[queue]
	q.mu.Unlock()
	if h == nil {
		return
	}

	if err := h(ctx, job); err != nil {
		q.log.Warn("⚠️ Job fallido",
			zap.String("queue", queue),
			zap.String("job", job.Name),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		if err := q.client.LPush(ctx, redisFailedPrefix+queue, members[0]).Err(); err != nil {
			q.log.Error("No se pudo archivar el job fallido", zap.Error(err))
		}
	}
}

func (q *RedisQueue) Stop() {
	close(q.stop)
	q.wg.Wait()
}

func (q *RedisQueue) Pause(queue string) {
	_ = q.client.Set(context.Background(), redisPausedPrefix+queue, "1", 0).Err()
}

func (q *RedisQueue) Resume(queue string) {
	_ = q.client.Del(context.Background(), redisPausedPrefix+queue).Err()
}

func (q *RedisQueue) Stats(ctx context.Context, queue string) (Stats, error) {
	total, err := q.client.ZCard(ctx, redisJobsPrefix+queue).Result()
	if err != nil {
		return Stats{}, &sharedDomain.TransientError{Op: "queue.stats", Err: err}
	}
	maxScore := fmt.Sprintf("%d", time.Now().UnixMilli()*priorityRange+(priorityRange-1))
	pending, err := q.client.ZCount(ctx, redisJobsPrefix+queue, "-inf", maxScore).Result()
	if err != nil {
		return Stats{}, &sharedDomain.TransientError{Op: "queue.stats", Err: err}
	}
	failed, err := q.client.LLen(ctx, redisFailedPrefix+queue).Result()
	if err != nil {
		return Stats{}, &sharedDomain.TransientError{Op: "queue.stats", Err: err}
	}
	paused, _ := q.client.Get(ctx, redisPausedPrefix+queue).Result()

	return Stats{
		Queue:   queue,
		Pending: pending,
		Delayed: total - pending,
		Failed:  failed,
		Paused:  paused == "1",
	}, nil
}

func (q *RedisQueue) FailedJobs(ctx context.Context, queue string) ([]Job, error) {
	raw, err := q.client.LRange(ctx, redisFailedPrefix+queue, 0, -1).Result()
	if err != nil {
		return nil, &sharedDomain.TransientError{Op: "queue.failedJobs", Err: err}
	}
	jobs := make([]Job, 0, len(raw))
	for _, item := range raw {
		var job Job
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Verificación estática
var _ Queue = (*RedisQueue)(nil)
