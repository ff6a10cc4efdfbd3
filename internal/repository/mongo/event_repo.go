package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const eventCollectionName = "assessment_events"

// mongoEventRepository implements repository.EventRepository
type mongoEventRepository struct {
	collection *mongo.Collection
}

// NewMongoEventRepository creates a new assessment event repository backed by MongoDB.
func NewMongoEventRepository(db *mongo.Database) repository.EventRepository {
	return &mongoEventRepository{
		collection: db.Collection(eventCollectionName),
	}
}

// Insert appends one event. The unique (sessionId, sequenceNumber) index is
// the log's compare-and-swap: when two writers computed the same next
// sequence, the loser gets ErrDuplicateKey and must recompute.
func (r *mongoEventRepository) Insert(ctx context.Context, event *domain.AssessmentEvent) (primitive.ObjectID, error) {
	if event.SessionID == primitive.NilObjectID || event.SequenceNumber <= 0 {
		return primitive.NilObjectID, errors.New("event requires sessionId and a positive sequenceNumber")
	}

	event.ID = primitive.NewObjectID()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted event ID")
	}
	return insertedID, nil
}

// MaxSequence returns the highest sequence number for a session, or 0 when
// the session has no events.
func (r *mongoEventRepository) MaxSequence(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	var event domain.AssessmentEvent
	filter := bson.M{"sessionId": sessionID}
	findOptions := options.FindOne().
		SetSort(bson.D{{Key: "sequenceNumber", Value: -1}}).
		SetProjection(bson.M{"sequenceNumber": 1})

	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}
	return event.SequenceNumber, nil
}

// ListBySession returns all events for a session in sequence order.
func (r *mongoEventRepository) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.AssessmentEvent, error) {
	var events []domain.AssessmentEvent
	filter := bson.M{"sessionId": sessionID}
	findOptions := options.Find().SetSort(bson.D{{Key: "sequenceNumber", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// EnsureEventIndexes creates necessary indexes for the assessment_events collection.
// The unique compound index is load-bearing; without it concurrent appends
// could assign duplicate sequence numbers.
func EnsureEventIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "sequenceNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// A missing unique index silently disables duplicate protection, so
		// this one is worth the noise.
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
