package revision

import (
	"context"

	"go-letters/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RevisionRepository has no update path; rows only go away with their document
type RevisionRepository interface {
	Insert(ctx context.Context, rev *Revision) error
	ListByDocument(ctx context.Context, documentID primitive.ObjectID) ([]Revision, error)
	DeleteByDocument(ctx context.Context, documentID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type RevisionRepositoryImpl struct {
	collection *mongo.Collection
}

func NewRevisionRepository(db *database.MongodbDB) RevisionRepository {
	return &RevisionRepositoryImpl{
		collection: db.DB.Collection("revisions"),
	}
}

func (r *RevisionRepositoryImpl) Insert(ctx context.Context, rev *Revision) error {
	if rev.ID.IsZero() {
		rev.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, rev)
	return err
}

func (r *RevisionRepositoryImpl) ListByDocument(ctx context.Context, documentID primitive.ObjectID) ([]Revision, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var revisions []Revision
	if err = cursor.All(ctx, &revisions); err != nil {
		return nil, err
	}
	return revisions, nil
}

// DeleteByDocument cascades a document delete
func (r *RevisionRepositoryImpl) DeleteByDocument(ctx context.Context, documentID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (r *RevisionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}
