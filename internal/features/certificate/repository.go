package certificate

import (
	"context"
	"fmt"

	"go-letters/internal/database"
	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CounterRepository hands out increasing sequence numbers per key. Every
// number returned is consumed, so callers draw one only when it will be kept.
type CounterRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}

type CounterRepositoryImpl struct {
	collection *mongo.Collection
}

func NewCounterRepository(db *database.MongodbDB) CounterRepository {
	return &CounterRepositoryImpl{
		collection: db.DB.Collection("counters"),
	}
}

func (r *CounterRepositoryImpl) Next(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance counter %s: %w", key, err)
	}
	return counter.Seq, nil
}

// DocumentLookup is the read side of the document store that verification needs
type DocumentLookup interface {
	FindByVerificationCode(ctx context.Context, code string) (*workflow.Document, error)
}
