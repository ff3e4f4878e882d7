package reminder

import (
	"context"

	"go-letters/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	List(ctx context.Context, limit int64) ([]Run, error)
}

type RunRepositoryImpl struct {
	collection *mongo.Collection
}

func NewRunRepository(db *database.MongodbDB) RunRepository {
	return &RunRepositoryImpl{
		collection: db.DB.Collection("reminder_runs"),
	}
}

func (r *RunRepositoryImpl) Create(ctx context.Context, run *Run) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *RunRepositoryImpl) Update(ctx context.Context, run *Run) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	return err
}

func (r *RunRepositoryImpl) List(ctx context.Context, limit int64) ([]Run, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var runs []Run
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
