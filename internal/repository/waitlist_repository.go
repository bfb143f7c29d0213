package repository

import (
	"context"
	"time"

	"schoolbox-be/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type WaitlistRepository struct {
	collection *mongo.Collection
}

func NewWaitlistRepository(db *mongo.Database) *WaitlistRepository {
	return &WaitlistRepository{
		collection: db.Collection("waitlist"),
	}
}

// Create inserts a new entry at the back of the active queue. Position is
// one past the highest position ever assigned among active entries;
// existing entries are never renumbered.
func (r *WaitlistRepository) Create(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
	now := time.Now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.WaitlistActive
	}
	if entry.Priority == "" {
		entry.Priority = models.PriorityNormal
	}
	entry.CreatedAt = now
	entry.UpdatedAt = now

	maxPos, err := r.maxActivePosition(ctx)
	if err != nil {
		return nil, err
	}
	entry.Position = maxPos + 1

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *WaitlistRepository) maxActivePosition(ctx context.Context) (int, error) {
	findOptions := options.FindOne()
	findOptions.SetSort(bson.D{{Key: "position", Value: -1}})

	var last models.WaitlistEntry
	err := r.collection.FindOne(ctx, bson.M{"status": models.WaitlistActive}, findOptions).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Position, nil
}

func (r *WaitlistRepository) GetByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *WaitlistRepository) FindByParentEmail(ctx context.Context, parentEmail string) ([]*models.WaitlistEntry, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"parentEmail": parentEmail})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*models.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// List returns entries ordered by queue position. An empty status lists all.
func (r *WaitlistRepository) List(ctx context.Context, status models.WaitlistStatus) ([]*models.WaitlistEntry, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*models.WaitlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateStatus changes the lifecycle status. Positions of other entries are
// left untouched.
func (r *WaitlistRepository) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) error {
	update := bson.M{
		"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *WaitlistRepository) CountActive(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"status": models.WaitlistActive})
	return int(n), err
}
