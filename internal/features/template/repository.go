package template

import (
	"context"

	"go-letters/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TemplateRepository interface {
	Create(ctx context.Context, tpl *Template) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error)
	List(ctx context.Context, filter bson.M) ([]Template, error)
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTemplateRepository(mongodb *database.MongodbDB) TemplateRepository {
	return &TemplateRepositoryImpl{
		Collection: mongodb.DB.Collection("templates"),
	}
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl *Template) error {
	_, err := r.Collection.InsertOne(ctx, tpl)
	return err
}

// GetByID returns nil, nil when no template matches
func (r *TemplateRepositoryImpl) GetByID(ctx context.Context, id primitive.ObjectID) (*Template, error) {
	var tpl Template
	err := r.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context, filter bson.M) ([]Template, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []Template
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepositoryImpl) Update(ctx context.Context, tpl *Template) error {
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": tpl.ID}, tpl)
	return err
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
