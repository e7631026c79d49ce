package live

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CollectionSlot holds at most one live collection subscription for
// its owner. Rebinding with structurally identical constraints keeps
// the existing subscription; rebinding with different constraints
// tears the old one down before opening the next, so the owner can
// never leak a listener. The owner calls Close exactly once when its
// scope ends.
type CollectionSlot[T any] struct {
	hub        *Hub
	collection string

	key string
	sub *Subscription[[]T]
}

func NewCollectionSlot[T any](h *Hub, collection string) *CollectionSlot[T] {
	return &CollectionSlot[T]{hub: h, collection: collection}
}

// Bind points the slot at the given constraints and returns the live
// subscription. Structurally equal constraints are a no-op returning
// the current subscription unchanged.
func (s *CollectionSlot[T]) Bind(c Constraints) (*Subscription[[]T], error) {
	key, err := c.Key(s.collection)
	if err != nil {
		return nil, err
	}
	if s.sub != nil && key == s.key {
		return s.sub, nil
	}
	if s.sub != nil {
		s.sub.Close()
	}
	s.sub = Collection[T](s.hub, s.collection, c)
	s.key = key
	return s.sub, nil
}

// Close tears down the bound subscription, if any.
func (s *CollectionSlot[T]) Close() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
		s.key = ""
	}
}

// DocumentSlot is the single-document counterpart of CollectionSlot,
// keyed by document ID.
type DocumentSlot[T any] struct {
	hub        *Hub
	collection string

	id  primitive.ObjectID
	sub *Subscription[*T]
}

func NewDocumentSlot[T any](h *Hub, collection string) *DocumentSlot[T] {
	return &DocumentSlot[T]{hub: h, collection: collection}
}

// Bind points the slot at the given document ID. Binding the same ID
// again is a no-op.
func (s *DocumentSlot[T]) Bind(id primitive.ObjectID) *Subscription[*T] {
	if s.sub != nil && id == s.id {
		return s.sub
	}
	if s.sub != nil {
		s.sub.Close()
	}
	s.sub = Document[T](s.hub, s.collection, id)
	s.id = id
	return s.sub
}

// Close tears down the bound subscription, if any.
func (s *DocumentSlot[T]) Close() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
		s.id = primitive.NilObjectID
	}
}
