package eventlog

import (
	"context"
	"sync"

	sharedEvents "github.com/davicafu/eventflow/internal/shared/domain/events"
)

// MemoryLog es la implementación en memoria del Client, pensada para
// despliegue local y tests. Mantiene el orden total por stream (Revision)
// y global (Seq), y reparte los eventos en vivo a cada suscriptor por un
// canal propio con un goroutine que invoca el callback secuencialmente.
type MemoryLog struct {
	mu        sync.RWMutex
	streams   map[string][]RecordedEvent
	global    []RecordedEvent
	seq       uint64
	snapshots map[string]Snapshot
	subs      map[*memSub]struct{}
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		streams:   make(map[string][]RecordedEvent),
		snapshots: make(map[string]Snapshot),
		subs:      make(map[*memSub]struct{}),
	}
}

type memSub struct {
	log      *MemoryLog
	stream   string // vacío si es suscripción de categoría
	category string
	after    uint64 // revision o seq, según el tipo de suscripción
	ch       chan RecordedEvent
	done     chan struct{}
	once     sync.Once
}

func (s *memSub) Cancel() {
	s.once.Do(func() {
		s.log.mu.Lock()
		delete(s.log.subs, s)
		s.log.mu.Unlock()
		close(s.done)
	})
}

func (s *memSub) matches(evt RecordedEvent) bool {
	if s.stream != "" {
		return evt.Stream == s.stream && evt.Revision > s.after
	}
	return CategoryOf(evt.Stream) == s.category && evt.Seq > s.after
}

func (l *MemoryLog) Append(ctx context.Context, stream string, events []sharedEvents.DomainEvent) error {
	l.mu.Lock()
	rev := uint64(len(l.streams[stream]))
	appended := make([]RecordedEvent, 0, len(events))
	for _, evt := range events {
		rev++
		l.seq++
		rec := RecordedEvent{Stream: stream, Revision: rev, Seq: l.seq, Event: evt}
		l.streams[stream] = append(l.streams[stream], rec)
		l.global = append(l.global, rec)
		appended = append(appended, rec)
	}
	subs := make([]*memSub, 0, len(l.subs))
	for s := range l.subs {
		subs = append(subs, s)
	}
	l.mu.Unlock()

	for _, rec := range appended {
		for _, s := range subs {
			if s.matches(rec) {
				select {
				case s.ch <- rec:
				case <-s.done:
				}
			}
		}
	}
	return nil
}

func (l *MemoryLog) Catchup(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (uint64, error) {
	l.mu.RLock()
	history := append([]RecordedEvent(nil), l.streams[stream]...)
	l.mu.RUnlock()

	last := fromRevision
	for _, rec := range history {
		if rec.Revision <= fromRevision {
			continue
		}
		if err := fn(ctx, rec); err != nil {
			return last, err
		}
		last = rec.Revision
	}
	return last, nil
}

func (l *MemoryLog) CatchupCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (uint64, error) {
	l.mu.RLock()
	history := append([]RecordedEvent(nil), l.global...)
	l.mu.RUnlock()

	last := fromSeq
	for _, rec := range history {
		if rec.Seq <= fromSeq || CategoryOf(rec.Stream) != category {
			continue
		}
		if err := fn(ctx, rec); err != nil {
			return last, err
		}
		last = rec.Seq
	}
	return last, nil
}

func (l *MemoryLog) SubscribeLive(ctx context.Context, stream string, fromRevision uint64, fn OnEvent) (Subscription, error) {
	return l.subscribe(ctx, &memSub{log: l, stream: stream, after: fromRevision}, fn)
}

func (l *MemoryLog) SubscribeCategory(ctx context.Context, category string, fromSeq uint64, fn OnEvent) (Subscription, error) {
	return l.subscribe(ctx, &memSub{log: l, category: category, after: fromSeq}, fn)
}

func (l *MemoryLog) subscribe(ctx context.Context, sub *memSub, fn OnEvent) (Subscription, error) {
	sub.ch = make(chan RecordedEvent, 64)
	sub.done = make(chan struct{})

	// La historia posterior a "after" se captura bajo el mismo candado que
	// registra la suscripción: un Append entre el catchup del llamante y este
	// registro acaba en pending, no perdido. "after" avanza hasta la última
	// posición capturada para que el reparto en vivo no duplique la frontera.
	l.mu.Lock()
	var pending []RecordedEvent
	if sub.stream != "" {
		for _, rec := range l.streams[sub.stream] {
			if rec.Revision > sub.after {
				pending = append(pending, rec)
			}
		}
		if n := len(pending); n > 0 {
			sub.after = pending[n-1].Revision
		}
	} else {
		for _, rec := range l.global {
			if CategoryOf(rec.Stream) == sub.category && rec.Seq > sub.after {
				pending = append(pending, rec)
			}
		}
		if n := len(pending); n > 0 {
			sub.after = pending[n-1].Seq
		}
	}
	l.subs[sub] = struct{}{}
	l.mu.Unlock()

	go func() {
		for _, rec := range pending {
			select {
			case <-ctx.Done():
				sub.Cancel()
				return
			case <-sub.done:
				return
			default:
			}
			if err := fn(ctx, rec); err != nil {
				sub.Cancel()
				return
			}
		}
		for {
			select {
			case <-ctx.Done():
				sub.Cancel()
				return
			case <-sub.done:
				return
			case rec := <-sub.ch:
				if err := fn(ctx, rec); err != nil {
					// el callback decide si la suscripción sigue viva;
					// un error la detiene igual que en el cliente real
					sub.Cancel()
					return
				}
			}
		}
	}()
	return sub, nil
}

func (l *MemoryLog) StreamRevision(ctx context.Context, stream string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.streams[stream])), nil
}

func (l *MemoryLog) LatestSnapshot(ctx context.Context, stream string) (*Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap, ok := l.snapshots[stream]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (l *MemoryLog) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots[snap.Stream] = snap
	return nil
}

// Verificación estática
var _ Client = (*MemoryLog)(nil)
