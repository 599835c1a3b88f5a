package organization

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	SetFeatures(ctx context.Context, id string, features map[string]bool, now time.Time) (Organization, error)
	GetCredits(ctx context.Context, id string) (int64, error)
	SetCredits(ctx context.Context, id string, credits int64, now time.Time) error

	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, orgID, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, orgID string) ([]User, error)
}

type MongoRepository struct {
	orgs  *mongo.Collection
	users *mongo.Collection
}

func NewRepository(orgs, users *mongo.Collection) *MongoRepository {
	return &MongoRepository{orgs: orgs, users: users}
}

func (r *MongoRepository) CreateOrganization(ctx context.Context, org Organization) error {
	_, err := r.orgs.InsertOne(ctx, org)
	return err
}

func (r *MongoRepository) GetOrganization(ctx context.Context, id string) (Organization, error) {
	var org Organization
	if err := r.orgs.FindOne(ctx, bson.M{"_id": id}).Decode(&org); err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (r *MongoRepository) SetFeatures(ctx context.Context, id string, features map[string]bool, now time.Time) (Organization, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"features":   features,
			"updated_at": now,
		},
	}

	var updated Organization
	if err := r.orgs.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return Organization{}, err
	}
	return updated, nil
}

func (r *MongoRepository) GetCredits(ctx context.Context, id string) (int64, error) {
	var doc struct {
		Credits int64 `bson:"credits"`
	}
	opts := options.FindOne().SetProjection(bson.M{"credits": 1})
	if err := r.orgs.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Credits, nil
}

func (r *MongoRepository) SetCredits(ctx context.Context, id string, credits int64, now time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"credits":    credits,
			"updated_at": now,
		},
	}
	_, err := r.orgs.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *MongoRepository) CreateUser(ctx context.Context, user User) error {
	_, err := r.users.InsertOne(ctx, user)
	return err
}

func (r *MongoRepository) GetUser(ctx context.Context, orgID, id string) (User, error) {
	var user User
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *MongoRepository) ListUsers(ctx context.Context, orgID string) ([]User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.users.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]User, 0)
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			return nil, err
		}
		items = append(items, user)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
