package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zapllo/crm-backend/internal/auth"
	"github.com/zapllo/crm-backend/internal/config"
	"github.com/zapllo/crm-backend/internal/db"
	"github.com/zapllo/crm-backend/internal/organization"
	"github.com/zapllo/crm-backend/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	orgName := envOrDefault("SEED_ORG_NAME", "Demo Organization")
	adminEmail := envOrDefault("SEED_ADMIN_EMAIL", "admin@example.com")
	adminName := envOrDefault("SEED_ADMIN_NAME", "Admin")
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	now := time.Now().In(cfg.Timezone)
	slug := organization.Slugify(orgName)

	orgID, err := upsertOrganization(ctx, cols, orgName, slug, now)
	if err != nil {
		log.Fatalf("seed organization: %v", err)
	}

	if err := upsertAdminUser(ctx, cols, orgID, adminName, adminEmail, adminPassword, now); err != nil {
		log.Fatalf("seed admin user: %v", err)
	}

	if err := upsertDefaultPipeline(ctx, cols, orgID, now); err != nil {
		log.Fatalf("seed pipeline: %v", err)
	}

	log.Println("seed completed")
}

func upsertOrganization(ctx context.Context, cols *db.Collections, name, slug string, now time.Time) (string, error) {
	filter := bson.M{"slug": slug}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"name":       name,
			"slug":       slug,
			"plan":       "free",
			"credits":    int64(0),
			"features":   map[string]bool{},
			"created_at": now,
			"updated_at": now,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var org organization.Organization
	if err := cols.Organizations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&org); err != nil {
		return "", err
	}
	return org.ID, nil
}

func upsertAdminUser(ctx context.Context, cols *db.Collections, orgID, name, email, password string, now time.Time) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	filter := bson.M{"email": email}
	update := bson.M{
		"$set": bson.M{
			"password_hash": hash,
			"role":          organization.RoleAdmin,
		},
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID().Hex(),
			"organization_id": orgID,
			"name":            name,
			"email":           email,
			"created_at":      now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func upsertDefaultPipeline(ctx context.Context, cols *db.Collections, orgID string, now time.Time) error {
	filter := bson.M{"organization_id": orgID, "name": "Sales"}

	openStages := []pipeline.Stage{
		{ID: uuid.NewString(), Name: "New", Color: "#4f8ef7"},
		{ID: uuid.NewString(), Name: "Contacted", Color: "#f7b84f"},
		{ID: uuid.NewString(), Name: "Negotiation", Color: "#9b59b6"},
	}
	closeStages := []pipeline.Stage{
		{ID: uuid.NewString(), Name: "Won", Color: "#2ecc71", Won: true},
		{ID: uuid.NewString(), Name: "Lost", Color: "#e74c3c", Lost: true},
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":             primitive.NewObjectID().Hex(),
			"organization_id": orgID,
			"name":            "Sales",
			"open_stages":     openStages,
			"close_stages":    closeStages,
			"custom_fields":   []pipeline.CustomField{},
			"created_at":      now,
			"updated_at":      now,
		},
	}
	_, err := cols.Pipelines.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
