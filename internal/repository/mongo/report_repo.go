package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const reportCollectionName = "weekly_reports"

// mongoReportRepository implements repository.ReportRepository
type mongoReportRepository struct {
	collection *mongo.Collection
}

// NewMongoReportRepository creates a new weekly report repository backed by MongoDB.
func NewMongoReportRepository(db *mongo.Database) repository.ReportRepository {
	return &mongoReportRepository{
		collection: db.Collection(reportCollectionName),
	}
}

// Upsert writes the snapshot for (user, weekStart), replacing any earlier run.
func (r *mongoReportRepository) Upsert(ctx context.Context, report *domain.WeeklyReport) error {
	if report.UserID == primitive.NilObjectID || report.WeekStart.IsZero() {
		return errors.New("weekly report requires userId and weekStart")
	}

	filter := bson.M{"userId": report.UserID, "weekStart": report.WeekStart}
	update := bson.M{
		"$set": bson.M{
			"stats":      report.Stats,
			"highlights": report.Highlights,
			"updatedAt":  time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"userId":    report.UserID,
			"weekStart": report.WeekStart,
			"createdAt": time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetByUserAndWeek retrieves the snapshot for one (user, weekStart).
func (r *mongoReportRepository) GetByUserAndWeek(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*domain.WeeklyReport, error) {
	var report domain.WeeklyReport
	filter := bson.M{"userId": userID, "weekStart": weekStart}

	err := r.collection.FindOne(ctx, filter).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

// EnsureReportIndexes creates necessary indexes for the weekly_reports collection.
func EnsureReportIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "weekStart", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
