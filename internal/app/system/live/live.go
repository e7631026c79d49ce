// Package live turns (collection, constraints) pairs into live query
// subscriptions backed by change streams. Every change event replaces
// the subscriber's data with a fresh full snapshot; there is no
// incremental merging, so a subscriber can never drift from the
// backend. Subscriptions are torn down explicitly through Close, never
// by garbage collection, because an orphaned remote listener keeps
// consuming bandwidth indefinitely.
package live

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Constraints selects and shapes the documents a collection
// subscription observes. Two Constraints values with structurally
// equal contents are the same subscription regardless of how the
// maps were built.
type Constraints struct {
	Filter bson.M
	Sort   bson.D
	Limit  int64
}

// Key returns a canonical byte string identifying (collection,
// constraints). Map keys are sorted recursively before marshaling so
// the key depends only on structure, not on map construction order.
func (c Constraints) Key(collection string) (string, error) {
	doc := bson.D{
		{Key: "collection", Value: collection},
		{Key: "filter", Value: canonical(c.Filter)},
		{Key: "sort", Value: c.Sort},
		{Key: "limit", Value: c.Limit},
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func canonical(v any) any {
	switch t := v.(type) {
	case bson.M:
		return canonicalMap(t)
	case map[string]any:
		return canonicalMap(t)
	case bson.D:
		out := make(bson.D, 0, len(t))
		for _, e := range t {
			out = append(out, bson.E{Key: e.Key, Value: canonical(e.Value)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out
	case bson.A:
		return canonicalSlice(t)
	case []any:
		return canonicalSlice(t)
	default:
		return v
	}
}

func canonicalMap[M ~map[string]any](m M) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(m))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: canonical(m[k])})
	}
	return out
}

func canonicalSlice[S ~[]any](s S) bson.A {
	out := make(bson.A, 0, len(s))
	for _, v := range s {
		out = append(out, canonical(v))
	}
	return out
}

// source is the backing store a hub reads from. The production
// implementation wraps a mongo database; tests script one.
type source interface {
	// Snapshot runs the constrained query and returns the raw
	// documents in backend order.
	Snapshot(ctx context.Context, collection string, c Constraints) ([]bson.Raw, error)

	// Document loads one document by id, nil if absent.
	Document(ctx context.Context, collection string, id primitive.ObjectID) (bson.Raw, error)

	// Watch opens a change feed on the collection. A value on events
	// means "something changed, re-query"; a value on errs is
	// terminal for the feed. stop releases the feed and must be
	// called exactly once.
	Watch(ctx context.Context, collection string) (events <-chan struct{}, errs <-chan error, stop func(), err error)
}

// Hub creates live subscriptions against one database.
type Hub struct {
	src source
	log *zap.Logger
}

func NewHub(db *mongo.Database, log *zap.Logger) *Hub {
	return &Hub{src: &mongoSource{db: db}, log: log}
}

func newHub(src source, log *zap.Logger) *Hub {
	return &Hub{src: src, log: log}
}
