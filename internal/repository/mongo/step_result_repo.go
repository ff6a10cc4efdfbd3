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

const stepResultCollectionName = "step_results"

// mongoStepResultRepository implements repository.StepResultRepository
type mongoStepResultRepository struct {
	collection *mongo.Collection
}

// NewMongoStepResultRepository creates a new step result repository backed by MongoDB.
func NewMongoStepResultRepository(db *mongo.Database) repository.StepResultRepository {
	return &mongoStepResultRepository{
		collection: db.Collection(stepResultCollectionName),
	}
}

// Upsert writes the result for (session, step). Re-submitting a step replaces
// the earlier payload; createdAt keeps its original value so ordering by
// creation time stays stable.
func (r *mongoStepResultRepository) Upsert(ctx context.Context, result *domain.StepResult) error {
	if result.SessionID == primitive.NilObjectID || result.StepID == "" {
		return errors.New("step result requires sessionId and stepId")
	}

	filter := bson.M{"sessionId": result.SessionID, "stepId": result.StepID}
	update := bson.M{
		"$set": bson.M{
			"result": result.Result,
		},
		"$setOnInsert": bson.M{
			"sessionId": result.SessionID,
			"stepId":    result.StepID,
			"createdAt": time.Now().UTC(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListBySession returns a session's results ordered by creation time, oldest first.
func (r *mongoStepResultRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.StepResult, error) {
	var results []domain.StepResult
	filter := bson.M{"sessionId": sessionID}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// EnsureStepResultIndexes creates necessary indexes for the step_results collection.
func EnsureStepResultIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "stepId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
