package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Collections struct {
	Organizations *mongo.Collection
	Users         *mongo.Collection
	Pipelines     *mongo.Collection
	Leads         *mongo.Collection
	Followups     *mongo.Collection
	Quotations    *mongo.Collection
	Wallets       *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *Collections, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, err
	}

	db := client.Database(dbName)

	cols := &Collections{
		Organizations: db.Collection("organizations"),
		Users:         db.Collection("users"),
		Pipelines:     db.Collection("pipelines"),
		Leads:         db.Collection("leads"),
		Followups:     db.Collection("followups"),
		Quotations:    db.Collection("quotations"),
		Wallets:       db.Collection("wallets"),
	}

	return client, cols, nil
}

func EnsureIndexes(ctx context.Context, cols *Collections) error {
	indexTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := cols.Organizations.Indexes().CreateOne(indexTimeout, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = cols.Users.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Pipelines.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Leads.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "pipeline_id", Value: 1}, {Key: "stage_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "assignee_id", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Followups.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "lead_id", Value: 1}},
		},
		// Dispatcher scan: open followups with unsent reminders due before now.
		{
			Keys: bson.D{{Key: "stage", Value: 1}, {Key: "reminders.sent", Value: 1}, {Key: "reminders.trigger_at", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Quotations.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "creator_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "lead_id", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = cols.Wallets.Indexes().CreateMany(indexTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	return nil
}
