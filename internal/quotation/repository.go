package quotation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, q Quotation) error
	GetByID(ctx context.Context, orgID, id string) (Quotation, error)
	ListByCreator(ctx context.Context, orgID, creatorID string) ([]Quotation, error)
	ListForLead(ctx context.Context, orgID, leadID string) ([]Quotation, error)
	// Transition sets the status and appends one history entry in a single
	// update, conditional on the current status so a concurrent transition
	// cannot slip in between. Returns mongo.ErrNoDocuments when nothing
	// matched (absent document or status already changed).
	Transition(ctx context.Context, orgID, id, fromStatus, toStatus string, entry ApprovalEntry, now time.Time) (Quotation, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, q Quotation) error {
	_, err := r.col.InsertOne(ctx, q)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, orgID, id string) (Quotation, error) {
	var q Quotation
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOne(ctx, filter).Decode(&q); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (r *MongoRepository) ListByCreator(ctx context.Context, orgID, creatorID string) ([]Quotation, error) {
	return r.list(ctx, bson.M{"organization_id": orgID, "creator_id": creatorID})
}

func (r *MongoRepository) ListForLead(ctx context.Context, orgID, leadID string) ([]Quotation, error) {
	return r.list(ctx, bson.M{"organization_id": orgID, "lead_id": leadID})
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M) ([]Quotation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Quotation, 0)
	for cursor.Next(ctx) {
		var q Quotation
		if err := cursor.Decode(&q); err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) Transition(ctx context.Context, orgID, id, fromStatus, toStatus string, entry ApprovalEntry, now time.Time) (Quotation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	filter := bson.M{
		"_id":             id,
		"organization_id": orgID,
		"status":          fromStatus,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     toStatus,
			"updated_at": now,
		},
		"$push": bson.M{"approval_history": entry},
	}

	var updated Quotation
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Quotation{}, err
	}
	return updated, nil
}
