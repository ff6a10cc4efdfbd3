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

const baselineCollectionName = "baselines"

// mongoBaselineRepository implements repository.BaselineRepository
type mongoBaselineRepository struct {
	collection *mongo.Collection
}

// NewMongoBaselineRepository creates a new baseline repository backed by MongoDB.
func NewMongoBaselineRepository(db *mongo.Database) repository.BaselineRepository {
	return &mongoBaselineRepository{
		collection: db.Collection(baselineCollectionName),
	}
}

// Create inserts a new baseline version. Versions are never overwritten; a
// re-synthesis always lands on version = previous + 1.
func (r *mongoBaselineRepository) Create(ctx context.Context, baseline *domain.Baseline) (primitive.ObjectID, error) {
	if baseline.SessionID == primitive.NilObjectID || baseline.Version < 1 {
		return primitive.NilObjectID, errors.New("baseline requires sessionId and version >= 1")
	}

	baseline.ID = primitive.NewObjectID()
	baseline.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, baseline)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted baseline ID")
	}
	return insertedID, nil
}

// LatestBySession returns the highest-version baseline for a session.
func (r *mongoBaselineRepository) LatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*domain.Baseline, error) {
	return r.latest(ctx, bson.M{"sessionId": sessionID})
}

// LatestByUser returns the user's most recent baseline across all sessions.
func (r *mongoBaselineRepository) LatestByUser(ctx context.Context, userID primitive.ObjectID) (*domain.Baseline, error) {
	return r.latest(ctx, bson.M{"userId": userID})
}

func (r *mongoBaselineRepository) latest(ctx context.Context, filter bson.M) (*domain.Baseline, error) {
	var baseline domain.Baseline
	findOptions := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}, {Key: "createdAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&baseline)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &baseline, nil
}

// EnsureBaselineIndexes creates necessary indexes for the baselines collection.
func EnsureBaselineIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
