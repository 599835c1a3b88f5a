package followup

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, f Followup) error
	GetByID(ctx context.Context, orgID, id string) (Followup, error)
	ListForLead(ctx context.Context, orgID, leadID string) ([]Followup, error)
	ListMine(ctx context.Context, orgID, userID string) ([]Followup, error)
	AppendRemark(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error)
	Reschedule(ctx context.Context, orgID, id string, followupDate time.Time, reminders []Reminder, now time.Time) (Followup, error)
	Close(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error)
	Delete(ctx context.Context, orgID, id string) error

	// FindDue returns open followups carrying at least one unsent reminder
	// whose trigger time has passed. Not tenant-scoped: the dispatcher works
	// across all organizations.
	FindDue(ctx context.Context, now time.Time, limit int64) ([]Followup, error)
	// MarkReminderSent flips one reminder to sent, keyed on sent=false so a
	// reminder never fires twice even with overlapping scans. Returns false
	// when another scan got there first.
	MarkReminderSent(ctx context.Context, followupID, reminderID string, sentAt time.Time) (bool, error)
	// ResetReminder releases a claimed reminder after a failed delivery so
	// the next scan picks it up again.
	ResetReminder(ctx context.Context, followupID, reminderID string, now time.Time) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, f Followup) error {
	_, err := r.col.InsertOne(ctx, f)
	return err
}

func (r *MongoRepository) GetByID(ctx context.Context, orgID, id string) (Followup, error) {
	var f Followup
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOne(ctx, filter).Decode(&f); err != nil {
		return Followup{}, err
	}
	return f, nil
}

func (r *MongoRepository) ListForLead(ctx context.Context, orgID, leadID string) ([]Followup, error) {
	filter := bson.M{"organization_id": orgID, "lead_id": leadID}
	return r.list(ctx, filter)
}

func (r *MongoRepository) ListMine(ctx context.Context, orgID, userID string) ([]Followup, error) {
	filter := bson.M{"organization_id": orgID, "added_by": userID}
	return r.list(ctx, filter)
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M) ([]Followup, error) {
	opts := options.Find().SetSort(bson.D{{Key: "followup_date", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Followup, 0)
	for cursor.Next(ctx) {
		var f Followup
		if err := cursor.Decode(&f); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) AppendRemark(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"remarks": remark},
		"$set":  bson.M{"updated_at": now},
	}

	var updated Followup
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Followup{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Reschedule(ctx context.Context, orgID, id string, followupDate time.Time, reminders []Reminder, now time.Time) (Followup, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set": bson.M{
			"followup_date": followupDate,
			"reminders":     reminders,
			"updated_at":    now,
		},
	}

	var updated Followup
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Followup{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Close(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$push": bson.M{"remarks": remark},
		"$set": bson.M{
			"stage":      StageClosed,
			"updated_at": now,
		},
	}

	var updated Followup
	filter := bson.M{"_id": id, "organization_id": orgID}
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return Followup{}, err
	}
	return updated, nil
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

func (r *MongoRepository) FindDue(ctx context.Context, now time.Time, limit int64) ([]Followup, error) {
	filter := bson.M{
		"stage": StageOpen,
		"reminders": bson.M{
			"$elemMatch": bson.M{
				"sent":       false,
				"trigger_at": bson.M{"$lte": now},
			},
		},
	}

	opts := options.Find().SetLimit(limit)
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]Followup, 0)
	for cursor.Next(ctx) {
		var f Followup
		if err := cursor.Decode(&f); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) MarkReminderSent(ctx context.Context, followupID, reminderID string, sentAt time.Time) (bool, error) {
	filter := bson.M{
		"_id": followupID,
		"reminders": bson.M{
			"$elemMatch": bson.M{
				"id":   reminderID,
				"sent": false,
			},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"reminders.$.sent":    true,
			"reminders.$.sent_at": sentAt,
			"updated_at":          sentAt,
		},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoRepository) ResetReminder(ctx context.Context, followupID, reminderID string, now time.Time) error {
	filter := bson.M{"_id": followupID, "reminders.id": reminderID}
	update := bson.M{
		"$set":   bson.M{"reminders.$.sent": false, "updated_at": now},
		"$unset": bson.M{"reminders.$.sent_at": ""},
	}
	_, err := r.col.UpdateOne(ctx, filter, update)
	return err
}
