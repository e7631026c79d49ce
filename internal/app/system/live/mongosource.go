package live

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoSource backs a hub with a mongo database and change streams.
type mongoSource struct {
	db *mongo.Database
}

func (m *mongoSource) Snapshot(ctx context.Context, collection string, c Constraints) ([]bson.Raw, error) {
	filter := c.Filter
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if len(c.Sort) > 0 {
		opts.SetSort(c.Sort)
	}
	if c.Limit > 0 {
		opts.SetLimit(c.Limit)
	}

	cur, err := m.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []bson.Raw
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (m *mongoSource) Document(ctx context.Context, collection string, id primitive.ObjectID) (bson.Raw, error) {
	var doc bson.Raw
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (m *mongoSource) Watch(ctx context.Context, collection string) (<-chan struct{}, <-chan error, func(), error) {
	wctx, cancel := context.WithCancel(ctx)
	cs, err := m.db.Collection(collection).Watch(wctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}

	events := make(chan struct{}, 1)
	errs := make(chan error, 1)

	go func() {
		defer cs.Close(context.Background())
		for cs.Next(wctx) {
			// Coalesce: the feed re-queries once per wakeup, so a
			// burst of events needs only one pending signal.
			select {
			case events <- struct{}{}:
			default:
			}
		}
		if err := cs.Err(); err != nil && wctx.Err() == nil {
			errs <- err
		}
	}()

	return events, errs, cancel, nil
}
