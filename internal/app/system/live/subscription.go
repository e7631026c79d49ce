package live

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/civicwatch/civicwatch/internal/app/system/timeouts"
)

// Snapshot is one observed state of a subscription. Loading is true
// exactly from subscribe until the first data snapshot or the first
// error. Err, once set, is terminal: the subscription stops and must
// be reopened to retry.
type Snapshot[P any] struct {
	Data    P
	Loading bool
	Err     error
}

// Subscription is a live view of a query. P is []T for collection
// subscriptions and *T for document subscriptions.
type Subscription[P any] struct {
	mu     sync.Mutex
	cur    Snapshot[P]
	update chan Snapshot[P]
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Current returns the latest observed snapshot.
func (s *Subscription[P]) Current() Snapshot[P] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Updates delivers snapshots with latest-value semantics: a slow
// reader sees only the newest state, never a backlog. The channel is
// closed when the subscription ends, after a terminal error or Close.
func (s *Subscription[P]) Updates() <-chan Snapshot[P] {
	return s.update
}

// Close tears the subscription down. Safe to call more than once;
// only the first call does anything.
func (s *Subscription[P]) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Subscription[P]) push(snap Snapshot[P]) {
	s.mu.Lock()
	s.cur = snap
	s.mu.Unlock()

	for {
		select {
		case s.update <- snap:
			return
		default:
			// Displace the stale value.
			select {
			case <-s.update:
			default:
			}
		}
	}
}

// Collection opens a live subscription over every document matching
// the constraints. Each backend change event replaces the data with a
// fresh full query result.
func Collection[T any](h *Hub, collection string, c Constraints) *Subscription[[]T] {
	fetch := func(ctx context.Context) ([]T, error) {
		// Each re-query is a bounded list read; only the watch itself
		// lives as long as the subscription.
		ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		defer cancel()

		docs, err := h.src.Snapshot(ctx, collection, c)
		if err != nil {
			return nil, err
		}
		out := make([]T, 0, len(docs))
		for _, raw := range docs {
			var item T
			if err := bson.Unmarshal(raw, &item); err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return open(h, collection, fetch)
}

// Document opens a live subscription over a single document. Data is
// nil while the document does not exist.
func Document[T any](h *Hub, collection string, id primitive.ObjectID) *Subscription[*T] {
	fetch := func(ctx context.Context) (*T, error) {
		ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
		defer cancel()

		raw, err := h.src.Document(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		var item T
		if err := bson.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		return &item, nil
	}
	return open(h, collection, fetch)
}

func open[P any](h *Hub, collection string, fetch func(context.Context) (P, error)) *Subscription[P] {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription[P]{
		cur:    Snapshot[P]{Loading: true},
		update: make(chan Snapshot[P], 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.update)
		sub.feed(ctx, h, collection, fetch)
	}()

	return sub
}

// feed owns the subscription lifecycle: watch first so no change can
// slip between the initial snapshot and the stream, then one full
// re-query per change event. The first failure of any kind ends the
// feed with a single terminal error snapshot.
func (s *Subscription[P]) feed(ctx context.Context, h *Hub, collection string, fetch func(context.Context) (P, error)) {
	events, errs, stop, err := h.src.Watch(ctx, collection)
	if err != nil {
		h.log.Warn("live: watch failed", zap.String("collection", collection), zap.Error(err))
		s.push(Snapshot[P]{Err: err})
		return
	}
	defer stop()

	refresh := func() bool {
		data, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			h.log.Warn("live: query failed", zap.String("collection", collection), zap.Error(err))
			s.push(Snapshot[P]{Err: err})
			return false
		}
		s.push(Snapshot[P]{Data: data})
		return true
	}

	if !refresh() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			if !refresh() {
				return
			}
		case err := <-errs:
			h.log.Warn("live: stream failed", zap.String("collection", collection), zap.Error(err))
			s.push(Snapshot[P]{Err: err})
			return
		}
	}
}
