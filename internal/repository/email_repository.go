package repository

import (
	"context"
	"fmt"
	"time"

	"schoolbox-be/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EmailRepository struct {
	collection *mongo.Collection
}

func NewEmailRepository(db *mongo.Database) *EmailRepository {
	return &EmailRepository{
		collection: db.Collection("emails"),
	}
}

// FindByMessageID returns the email for a provider message id, or nil when
// the message has never been ingested.
func (r *EmailRepository) FindByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	var email models.Email
	err := r.collection.FindOne(ctx, bson.M{"messageId": messageID}).Decode(&email)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &email, nil
}

// Save inserts the email. A duplicate messageId is not an error: the
// existing document is returned instead, so re-ingesting the same provider
// message is a no-op.
func (r *EmailRepository) Save(ctx context.Context, email *models.Email) (*models.Email, error) {
	now := time.Now()
	if email.CreatedAt.IsZero() {
		email.CreatedAt = now
	}
	email.UpdatedAt = now
	if email.ID == "" {
		email.ID = email.MessageID
	}
	if email.AIProcessing.Category == "" {
		email.AIProcessing.Category = models.CategoryUnclassified
	}
	if email.AIProcessing.Priority == "" {
		email.AIProcessing.Priority = models.PriorityNormal
	}
	if email.Response.Status == "" {
		email.Response.Status = models.ResponseNotRequired
	}

	_, err := r.collection.InsertOne(ctx, email)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByMessageID(ctx, email.MessageID)
		}
		return nil, err
	}
	return email, nil
}

// MarkProcessed flips processed to true and embeds the analysis. The filter
// on processed=false makes the flag monotonic: a processed email is never
// reclassified by a concurrent pass.
func (r *EmailRepository) MarkProcessed(ctx context.Context, messageID string, analysis *models.Analysis) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"aiProcessing.processed":         true,
			"aiProcessing.processedAt":       now,
			"aiProcessing.category":          analysis.Category,
			"aiProcessing.confidence":        analysis.Confidence,
			"aiProcessing.sentiment":         analysis.Sentiment,
			"aiProcessing.sentimentScore":    analysis.SentimentScore,
			"aiProcessing.priority":          analysis.Priority,
			"aiProcessing.priorityReason":    analysis.PriorityReason,
			"aiProcessing.intents":           analysis.Intents,
			"aiProcessing.extractedInfo":     analysis.ExtractedInfo,
			"aiProcessing.suggestedResponse": analysis.SuggestedResponse,
			"updatedAt":                      now,
		},
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"messageId": messageID, "aiProcessing.processed": false}, update)
	return err
}

// AppendError pushes a diagnostic entry. Entries are append-only.
func (r *EmailRepository) AppendError(ctx context.Context, messageID string, entry models.ErrorEntry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	update := bson.M{
		"$push": bson.M{"errors": entry},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"messageId": messageID}, update)
	return err
}

// RecordAutoAction appends an audit entry for an automatic side effect.
func (r *EmailRepository) RecordAutoAction(ctx context.Context, messageID string, action models.AutoAction) error {
	update := bson.M{
		"$push": bson.M{"aiProcessing.autoActions": action},
		"$set":  bson.M{"updatedAt": time.Now()},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"messageId": messageID}, update)
	return err
}

// Escalate moves priority one step up the ladder and records why. At the
// ceiling the priority stays urgent but the reason is still logged. The
// update filters on the priority that was read, so each rung is taken
// exactly once: a concurrent escalation that already moved the email makes
// the filter miss and the step is retried from the new priority.
func (r *EmailRepository) Escalate(ctx context.Context, messageID string, reason string) (*models.Email, error) {
	for attempt := 0; attempt < 3; attempt++ {
		email, err := r.FindByMessageID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if email == nil {
			return nil, mongo.ErrNoDocuments
		}

		current := email.AIProcessing.Priority
		next := models.NextPriority(current)
		update := bson.M{
			"$set": bson.M{
				"aiProcessing.priority": next,
				"updatedAt":             time.Now(),
			},
			"$inc":  bson.M{"aiProcessing.escalationCount": 1},
			"$push": bson.M{"aiProcessing.escalationReasons": reason},
		}
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"messageId": messageID, "aiProcessing.priority": current}, update)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			// Lost a race with another escalation; re-read and retry.
			continue
		}

		email.AIProcessing.Priority = next
		email.AIProcessing.EscalationCount++
		email.AIProcessing.EscalationReasons = append(email.AIProcessing.EscalationReasons, reason)
		return email, nil
	}
	return nil, fmt.Errorf("escalate %s: too many concurrent updates", messageID)
}

// UpdateFlags sets the given flag fields. Flag names follow the model's
// bson keys (isRead, isImportant, requiresAction, ...).
func (r *EmailRepository) UpdateFlags(ctx context.Context, messageID string, flags map[string]bool) error {
	set := bson.M{"updatedAt": time.Now()}
	for name, value := range flags {
		set["flags."+name] = value
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"messageId": messageID}, bson.M{"$set": set})
	return err
}

// SetResponse records a drafted or sent response on the email.
func (r *EmailRepository) SetResponse(ctx context.Context, messageID string, info models.ResponseInfo) error {
	update := bson.M{
		"$set": bson.M{
			"response":  info,
			"updatedAt": time.Now(),
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"messageId": messageID}, update)
	return err
}

// List returns a page of emails sorted newest first. category and processed
// filter when non-zero.
func (r *EmailRepository) List(ctx context.Context, category models.Category, processed *bool, page, perPage int) ([]*models.Email, int, error) {
	filter := bson.M{"flags.isDeleted": false}
	if category != "" {
		filter["aiProcessing.category"] = category
	}
	if processed != nil {
		filter["aiProcessing.processed"] = *processed
	}

	skip := (page - 1) * perPage

	findOptions := options.Find()
	findOptions.SetSkip(int64(skip))
	findOptions.SetLimit(int64(perPage))
	findOptions.SetSort(bson.D{{Key: "receivedAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var emails []*models.Email
	if err = cursor.All(ctx, &emails); err != nil {
		return nil, 0, err
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return emails, int(total), nil
}

// ListUnprocessed returns emails still waiting for classification, oldest
// first so retries drain in arrival order.
func (r *EmailRepository) ListUnprocessed(ctx context.Context, limit int64) ([]*models.Email, error) {
	findOptions := options.Find()
	findOptions.SetLimit(limit)
	findOptions.SetSort(bson.D{{Key: "receivedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{
		"aiProcessing.processed": false,
		"flags.isDeleted":        false,
	}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var emails []*models.Email
	if err = cursor.All(ctx, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

// ListRecentSubjects returns id, subject and sender for fuzzy search over
// the most recent emails.
func (r *EmailRepository) ListRecentSubjects(ctx context.Context, limit int64) ([]*models.Email, error) {
	findOptions := options.Find()
	findOptions.SetLimit(limit)
	findOptions.SetSort(bson.D{{Key: "receivedAt", Value: -1}})
	findOptions.SetProjection(bson.M{
		"messageId": 1, "subject": 1, "from": 1, "snippet": 1, "receivedAt": 1,
		"aiProcessing.category": 1,
	})

	cursor, err := r.collection.Find(ctx, bson.M{"flags.isDeleted": false}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var emails []*models.Email
	if err = cursor.All(ctx, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}
