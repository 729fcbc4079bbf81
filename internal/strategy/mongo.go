package strategy

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collStrategies = "strategies"

// MongoPersister stores strategies in the strategies collection, keyed by id.
type MongoPersister struct {
	coll *mongo.Collection
}

func NewMongoPersister(db *mongo.Database) *MongoPersister {
	return &MongoPersister{coll: db.Collection(collStrategies)}
}

// Save upserts one strategy document.
func (p *MongoPersister) Save(ctx context.Context, s Strategy) error {
	_, err := p.coll.ReplaceOne(ctx,
		bson.M{"id": s.ID},
		s,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save strategy %s: %w", s.ID, err)
	}
	return nil
}

// LoadAll restores every persisted strategy.
func (p *MongoPersister) LoadAll(ctx context.Context) ([]Strategy, error) {
	cur, err := p.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	var out []Strategy
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	return out, nil
}
