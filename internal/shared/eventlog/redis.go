package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	sharedDomain "github.com/davicafu/eventflow/internal/shared/domain"
	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

const (
	redisStreamPrefix   = "eventflow:stream:"
	redisCategoryPrefix = "eventflow:cat:"
	redisRevisionPrefix = "eventflow:rev:"
	redisSnapshotPrefix = "eventflow:snap:"
	redisSeqKey         = "eventflow:seq"

	redisReadBlock = 5 * time.Second
	redisReadPage  = int64(128)
)

// RedisLog implementa Client sobre Redis Streams: un stream por agregado
// (XADD/XRANGE/XREAD) más un stream por categoría que replica cada entrada,
// al estilo de las proyecciones $ce de un event store.
type RedisLog struct {
	client *redis.Client
}

func NewRedisLog(client *redis.Client) *RedisLog {
	return &RedisLog{client: client}
}

type redisEntry struct {
	Stream   string `json:"stream"`
	Revision uint64 `json:"revision"`
	Seq      uint64 `json:"seq"`
}

// Append asigna revisiones y seq globales y escribe el lote completo dentro
// de un TxPipeline (MULTI/EXEC): o entra todo o no entra nada.
func (l *RedisLog) Append(ctx context.Context, stream string, events []sharedEvents.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Reservamos el rango de posiciones por adelantado; INCRBY es atómico.
	rev, err := l.client.IncrBy(ctx, redisRevisionPrefix+stream, int64(len(events))).Result()
	if err != nil {
		return &sharedDomain.TransientError{Op: "eventlog.append", Err: err}
	}
	seq, err := l.client.IncrBy(ctx, redisSeqKey, int64(len(events))).Result()
	if err != nil {
		return &sharedDomain.TransientError{Op: "eventlog.append", Err: err}
	}

	firstRev := uint64(rev) - uint64(len(events)) + 1
	firstSeq := uint64(seq) - uint64(len(events)) + 1

	pipe := l.client.TxPipeline()
	for i, evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", evt.ID, err)
		}
		values := map[string]interface{}{
			"stream":   stream,
			"revision": firstRev + uint64(i),
			"seq":      firstSeq + uint64(i),
			"data":     data,
		}
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: redisStreamPrefix + stream, Values: values})
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: redisCategoryPrefix + CategoryOf(stream), Values: values})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &sharedDomain.TransientError{Op: "eventlog.append", Err: err}
	}
	return nil
}

func parseRedisMessage(msg redis.XMessage) (RecordedEvent, error) {
	var rec RecordedEvent
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return rec, fmt.Errorf("entry %s has no data field", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Event); err != nil {
		return rec, fmt.Errorf("invalid event payload in entry %s: %w", msg.ID, err)
	}
	rec.Stream, _ = msg.Values["stream"].(string)
	if s, ok := msg.Values["revision"].(string); ok {
		rec.Revision, _ = strconv.ParseUint(s, 10, 64)
	}
	if s, ok := msg.Values["seq"].(string); ok {
		rec.Seq, _ = strconv.ParseUint(s, 10, 64)
	}
	return rec, nil
}

// catchupKey recorre un stream redis por páginas entregando las entradas con
// posición estrictamente posterior a "after". Devuelve la última posición
// vista y el último XID, para que la suscripción en vivo continúe desde ahí.
func (l *RedisLog) catchupKey(ctx context.Context, key string, after uint64, byRevision bool, fn OnEvent) (uint64, string, error) {
	last := after
	lastID := "-"
	for {
		start := lastID
		if lastID != "-" {
			start = "(" + lastID
		}
		msgs, err := l.client.XRangeN(ctx, key, start, "+", redisReadPage).Result()
		if err != nil {
			return last, lastID, &sharedDomain.TransientError{Op: "eventlog.catchup", Err: err}
		}
		if len(msgs) == 0 {
			return last, lastID, nil
		}
		for _, msg := range msgs {
			lastID = msg.ID
			rec, err := parseRedisMessage(msg)
			if err != nil {
				return last, lastID, err
			}
			pos := rec.Seq
			if byRevision {
				pos = rec.Revision
			}
			if pos <= after {
				continue
			}
			if fn != nil {
				if err := fn(ctx, rec); err != nil {
					return last, lastID, err
				}
			}
			last = pos
		}
	}
}

func (l *RedisLog) Catchup(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (uint64, error) {
	last, _, err := l.catchupKey(ctx, redisStreamPrefix+stream, fromRevision, true, fn)
	return last, err
}

func (l *RedisLog) CatchupCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (uint64, error) {
	last, _, err := l.catchupKey(ctx, redisCategoryPrefix+category, fromSeq, false, fn)
	return last, err
}

type redisSub struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *redisSub) Cancel() {
	s.cancel()
	s.wg.Wait()
}

// subscribeKey localiza el XID correspondiente a la posición pedida y luego
// entra en un bucle XREAD BLOCK: sin huecos ni duplicados en la frontera.
func (l *RedisLog) subscribeKey(ctx context.Context, key string, after uint64, byRevision bool, fn OnEvent) (Subscription, error) {
	// Primer barrido: entregar lo que ya estaba escrito con posición > after
	// (lo aparecido entre el catchup del llamante y esta llamada) y quedarnos
	// con el último XID para que el XREAD continúe justo detrás.
	_, lastID, err := l.catchupKey(ctx, key, after, byRevision, fn)
	if err != nil {
		return nil, err
	}
	if lastID == "-" {
		lastID = "0-0"
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSub{cancel: cancel}
	sub.wg.Add(1)

	go func() {
		defer sub.wg.Done()
		for {
			res, err := l.client.XRead(subCtx, &redis.XReadArgs{
				Streams: []string{key, lastID},
				Count:   redisReadPage,
				Block:   redisReadBlock,
			}).Result()
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				if err == redis.Nil {
					continue // timeout del BLOCK, seguimos esperando
				}
				continue
			}
			for _, stream := range res {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					rec, err := parseRedisMessage(msg)
					if err != nil {
						continue
					}
					pos := rec.Seq
					if byRevision {
						pos = rec.Revision
					}
					if pos <= after {
						continue
					}
					if err := fn(subCtx, rec); err != nil {
						return
					}
				}
			}
		}
	}()
	return sub, nil
}

func (l *RedisLog) SubscribeLive(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (Subscription, error) {
	return l.subscribeKey(ctx, redisStreamPrefix+stream, fromRevision, true, fn)
}

func (l *RedisLog) SubscribeCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (Subscription, error) {
	return l.subscribeKey(ctx, redisCategoryPrefix+category, fromSeq, false, fn)
}

func (l *RedisLog) StreamRevision(ctx context.Context, stream string) (uint64, error) {
	val, err := l.client.Get(ctx, redisRevisionPrefix+stream).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, &sharedDomain.TransientError{Op: "eventlog.revision", Err: err}
	}
	return strconv.ParseUint(val, 10, 64)
}

func (l *RedisLog) LatestSnapshot(ctx context.Context, stream string) (*Snapshot, error) {
	data, err := l.client.Get(ctx, redisSnapshotPrefix+stream).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, &sharedDomain.TransientError{Op: "eventlog.snapshot", Err: err}
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot for %s: %w", stream, err)
	}
	return &snap, nil
}

func (l *RedisLog) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := l.client.Set(ctx, redisSnapshotPrefix+snap.Stream, data, 0).Err(); err != nil {
		return &sharedDomain.TransientError{Op: "eventlog.snapshot", Err: err}
	}
	return nil
}

// Verificación estática
var _ Client = (*RedisLog)(nil)
