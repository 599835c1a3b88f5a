package pipeline

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, p Pipeline) error
	GetByID(ctx context.Context, orgID, id string) (Pipeline, error)
	List(ctx context.Context, orgID string) ([]Pipeline, error)
	Delete(ctx context.Context, orgID, id string) error
	PushStage(ctx context.Context, orgID, id, listField string, stage Stage, now time.Time) (Pipeline, error)
	PullStages(ctx context.Context, orgID, id string, stageIDs []string, now time.Time) error
	PushCustomField(ctx context.Context, orgID, id string, field CustomField, now time.Time) (Pipeline, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, p Pipeline) error {
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, orgID, id string) (Pipeline, error) {
	var p Pipeline
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOne(ctx, filter).Decode(&p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func (r *MongoRepository) List(ctx context.Context, orgID string) ([]Pipeline, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Pipeline, 0)
	for cursor.Next(ctx) {
		var p Pipeline
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "organization_id": orgID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) PushStage(ctx context.Context, orgID, id, listField string, stage Stage, now time.Time) (Pipeline, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{listField: stage},
		"$set":  bson.M{"updated_at": now},
	}

	var updated Pipeline
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Pipeline{}, err
	}
	return updated, nil
}

func (r *MongoRepository) PullStages(ctx context.Context, orgID, id string, stageIDs []string, now time.Time) error {
	update := bson.M{
		"$pull": bson.M{
			"open_stages":  bson.M{"id": bson.M{"$in": stageIDs}},
			"close_stages": bson.M{"id": bson.M{"$in": stageIDs}},
		},
		"$set": bson.M{"updated_at": now},
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "organization_id": orgID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *MongoRepository) PushCustomField(ctx context.Context, orgID, id string, field CustomField, now time.Time) (Pipeline, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"custom_fields": field},
		"$set":  bson.M{"updated_at": now},
	}

	var updated Pipeline
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Pipeline{}, err
	}
	return updated, nil
}
