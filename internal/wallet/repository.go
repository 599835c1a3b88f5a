package wallet

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	// GetOrCreate returns the organization's wallet, inserting an empty one
	// on first access. The unique index on organization_id makes concurrent
	// first accesses converge on a single document.
	GetOrCreate(ctx context.Context, orgID, currency string, now time.Time) (Wallet, error)
	Get(ctx context.Context, orgID string) (Wallet, error)
	// Apply adjusts the balance and appends the ledger entry in one update.
	// extraFilter narrows the match (overdraft guard, payment idempotency);
	// mongo.ErrNoDocuments reports a non-match.
	Apply(ctx context.Context, orgID string, delta int64, txn Transaction, extraFilter bson.M, now time.Time) (Wallet, error)
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetOrCreate(ctx context.Context, orgID, currency string, now time.Time) (Wallet, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID().Hex(),
			"organization_id": orgID,
			"balance":         int64(0),
			"currency":        currency,
			"transactions":    []Transaction{},
			"created_at":      now,
			"updated_at":      now,
		},
	}

	var w Wallet
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"organization_id": orgID}, update, opts).Decode(&w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (r *MongoRepository) Get(ctx context.Context, orgID string) (Wallet, error) {
	var w Wallet
	if err := r.col.FindOne(ctx, bson.M{"organization_id": orgID}).Decode(&w); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (r *MongoRepository) Apply(ctx context.Context, orgID string, delta int64, txn Transaction, extraFilter bson.M, now time.Time) (Wallet, error) {
	filter := bson.M{"organization_id": orgID}
	for k, v := range extraFilter {
		filter[k] = v
	}

	update := bson.M{
		"$inc":  bson.M{"balance": delta},
		"$push": bson.M{"transactions": txn},
		"$set":  bson.M{"updated_at": now},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated Wallet
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Wallet{}, err
	}
	return updated, nil
}
