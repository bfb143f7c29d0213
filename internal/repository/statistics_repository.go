package repository

import (
	"context"
	"time"

	"schoolbox-be/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type StatisticsRepository struct {
	emailCollection *mongo.Collection
}

func NewStatisticsRepository(db *mongo.Database) *StatisticsRepository {
	return &StatisticsRepository{
		emailCollection: db.Collection("emails"),
	}
}

// GetEmailsByCategory aggregates processed email count by classifier category
func (r *StatisticsRepository) GetEmailsByCategory(ctx context.Context) ([]models.CategoryStats, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"flags.isDeleted": false}},
		{"$group": bson.M{
			"_id":   "$aiProcessing.category",
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := r.emailCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []models.CategoryStats
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Category == "" {
			results[i].Category = string(models.CategoryUnclassified)
		}
	}

	return results, nil
}

// GetEmailsByPriority aggregates email count by priority
func (r *StatisticsRepository) GetEmailsByPriority(ctx context.Context) ([]models.PriorityStats, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"flags.isDeleted": false}},
		{"$group": bson.M{
			"_id":   "$aiProcessing.priority",
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"count": -1}},
	}

	cursor, err := r.emailCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []models.PriorityStats
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// GetEmailTrend aggregates emails by date for the last N days
func (r *StatisticsRepository) GetEmailTrend(ctx context.Context, days int) ([]models.EmailTrendPoint, error) {
	startDate := time.Now().AddDate(0, 0, -days)

	pipeline := []bson.M{
		{"$match": bson.M{
			"receivedAt":      bson.M{"$gte": startDate},
			"flags.isDeleted": false,
		}},
		{"$group": bson.M{
			"_id": bson.M{
				"$dateToString": bson.M{
					"format": "%Y-%m-%d",
					"date":   "$receivedAt",
				},
			},
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"_id": 1}},
	}

	cursor, err := r.emailCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []models.EmailTrendPoint
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// GetTopSenders aggregates top N email senders
func (r *StatisticsRepository) GetTopSenders(ctx context.Context, limit int) ([]models.TopSender, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"flags.isDeleted": false}},
		{"$group": bson.M{
			"_id":   "$from.email",
			"name":  bson.M{"$first": "$from.name"},
			"count": bson.M{"$sum": 1},
		}},
		{"$sort": bson.M{"count": -1}},
		{"$limit": limit},
		{"$project": bson.M{
			"email": "$_id",
			"name":  1,
			"count": 1,
		}},
	}

	cursor, err := r.emailCollection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []models.TopSender
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	return results, nil
}

// GetCounts returns the headline email counts. The active waitlist count
// comes from WaitlistRepository.CountActive.
func (r *StatisticsRepository) GetCounts(ctx context.Context) (total, unprocessed, requiresAction int, err error) {
	n, err := r.emailCollection.CountDocuments(ctx, bson.M{"flags.isDeleted": false})
	if err != nil {
		return 0, 0, 0, err
	}
	total = int(n)

	n, err = r.emailCollection.CountDocuments(ctx, bson.M{
		"flags.isDeleted":        false,
		"aiProcessing.processed": false,
	})
	if err != nil {
		return 0, 0, 0, err
	}
	unprocessed = int(n)

	n, err = r.emailCollection.CountDocuments(ctx, bson.M{
		"flags.isDeleted":      false,
		"flags.requiresAction": true,
	})
	if err != nil {
		return 0, 0, 0, err
	}
	requiresAction = int(n)

	return total, unprocessed, requiresAction, nil
}
