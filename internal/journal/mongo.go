package journal

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collLogs      = "logs"
	collWebhooks  = "webhooks"
	collResponses = "responses"
)

// Mongo persists journal entries across three collections, one per variant.
// The sequence counter is seeded from the highest stored seq at open so
// ordering survives restarts.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	seq    atomic.Int64
}

// OpenMongo connects, pings, and seeds the sequence counter.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{client: client, db: client.Database(database)}
	seq, err := m.maxSeq(ctx)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	m.seq.Store(seq)
	return m, nil
}

// Database exposes the underlying handle so other collections (the
// strategy registry) can share the connection.
func (m *Mongo) Database() *mongo.Database {
	return m.db
}

func (m *Mongo) maxSeq(ctx context.Context) (int64, error) {
	var max int64
	for _, coll := range []string{collLogs, collWebhooks, collResponses} {
		var head struct {
			Seq int64 `bson:"seq"`
		}
		err := m.db.Collection(coll).
			FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).
			Decode(&head)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("seed seq from %s: %w", coll, err)
		}
		if head.Seq > max {
			max = head.Seq
		}
	}
	return max, nil
}

func (m *Mongo) collection(kind Kind) *mongo.Collection {
	switch kind {
	case KindWebhook:
		return m.db.Collection(collWebhooks)
	case KindVenueResponse:
		return m.db.Collection(collResponses)
	default:
		return m.db.Collection(collLogs)
	}
}

func (m *Mongo) Append(ctx context.Context, e Entry) error {
	e.meta().Seq = m.seq.Add(1)
	if _, err := m.collection(e.Kind()).InsertOne(ctx, e); err != nil {
		return fmt.Errorf("append %s: %w", e.Kind(), err)
	}
	return nil
}

// notInternal strips the driver's _id so store internals never reach
// callers.
var notInternal = bson.M{"_id": 0}

func (m *Mongo) RecentLogs(ctx context.Context, limit int, level string) ([]Log, error) {
	filter := bson.M{}
	if level != "" {
		filter["level"] = level
	}
	return findRecent[Log](ctx, m.db.Collection(collLogs), filter, limit)
}

func (m *Mongo) RecentWebhooks(ctx context.Context, limit int, strategyIDs []string) ([]WebhookReceived, error) {
	if strategyIDs != nil && len(strategyIDs) == 0 {
		return []WebhookReceived{}, nil
	}
	filter := bson.M{}
	if strategyIDs != nil {
		filter["strategy_id"] = bson.M{"$in": strategyIDs}
	}
	return findRecent[WebhookReceived](ctx, m.db.Collection(collWebhooks), filter, limit)
}

func (m *Mongo) RecentResponses(ctx context.Context, limit int, strategyIDs []string) ([]VenueResponse, error) {
	if strategyIDs != nil && len(strategyIDs) == 0 {
		return []VenueResponse{}, nil
	}
	filter := bson.M{}
	if strategyIDs != nil {
		filter["strategy_id"] = bson.M{"$in": strategyIDs}
	}
	return findRecent[VenueResponse](ctx, m.db.Collection(collResponses), filter, limit)
}

func findRecent[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, limit int) ([]T, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(notInternal)

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	out := make([]T, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	return out, nil
}

func (m *Mongo) ClearLogs(ctx context.Context) (int64, error) {
	res, err := m.db.Collection(collLogs).DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("clear logs: %w", err)
	}
	return res.DeletedCount, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
