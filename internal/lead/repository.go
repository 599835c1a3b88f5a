package lead

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, lead Lead) error
	GetByID(ctx context.Context, orgID, id string) (Lead, error)
	List(ctx context.Context, orgID string, filter ListFilter, limit, offset int64) ([]Lead, error)
	Count(ctx context.Context, orgID string, filter ListFilter) (int64, error)
	// AppendTimeline appends an entry, optionally updating fields, guarded by
	// the version the caller read. Returns mongo.ErrNoDocuments when nothing
	// matched (absent document or stale version).
	AppendTimeline(ctx context.Context, orgID, id string, expectedVersion int64, entry TimelineEntry, set bson.M, now time.Time) (Lead, error)
	CountByStage(ctx context.Context, orgID string) ([]StageCount, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, lead Lead) error {
	_, err := r.col.InsertOne(ctx, lead)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, orgID, id string) (Lead, error) {
	var lead Lead
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOne(ctx, filter).Decode(&lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *MongoRepository) List(ctx context.Context, orgID string, filter ListFilter, limit, offset int64) ([]Lead, error) {
	query := r.filterToBSON(orgID, filter)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Lead, 0)
	for cursor.Next(ctx) {
		var lead Lead
		if err := cursor.Decode(&lead); err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Count(ctx context.Context, orgID string, filter ListFilter) (int64, error) {
	return r.col.CountDocuments(ctx, r.filterToBSON(orgID, filter))
}

func (r *MongoRepository) AppendTimeline(ctx context.Context, orgID, id string, expectedVersion int64, entry TimelineEntry, set bson.M, now time.Time) (Lead, error) {
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = now

	update := bson.M{
		"$push": bson.M{"timeline": entry},
		"$set":  set,
		"$inc":  bson.M{"version": 1},
	}
	filter := bson.M{
		"_id":             id,
		"organization_id": orgID,
		"version":         expectedVersion,
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Lead
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Lead{}, err
	}
	return updated, nil
}

func (r *MongoRepository) CountByStage(ctx context.Context, orgID string) ([]StageCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "organization_id", Value: orgID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$stage_id"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make([]StageCount, 0)
	for cursor.Next(ctx) {
		var c StageCount
		if err := cursor.Decode(&c); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *MongoRepository) filterToBSON(orgID string, filter ListFilter) bson.M {
	query := bson.M{"organization_id": orgID}
	if filter.PipelineID != "" {
		query["pipeline_id"] = filter.PipelineID
	}
	if filter.StageID != "" {
		query["stage_id"] = filter.StageID
	}
	if filter.AssigneeID != "" {
		query["assignee_id"] = filter.AssigneeID
	}
	return query
}
