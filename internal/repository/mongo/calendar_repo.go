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

const (
	calendarEventCollectionName  = "calendar_events"
	plannedSessionCollectionName = "planned_sessions"
)

// mongoCalendarRepository implements repository.CalendarRepository
type mongoCalendarRepository struct {
	events  *mongo.Collection
	planned *mongo.Collection
}

// NewMongoCalendarRepository creates a new calendar repository backed by MongoDB.
func NewMongoCalendarRepository(db *mongo.Database) repository.CalendarRepository {
	return &mongoCalendarRepository{
		events:  db.Collection(calendarEventCollectionName),
		planned: db.Collection(plannedSessionCollectionName),
	}
}

// InsertEvent inserts a new calendar event.
func (r *mongoCalendarRepository) InsertEvent(ctx context.Context, event *domain.CalendarEvent) (primitive.ObjectID, error) {
	if event.UserID == primitive.NilObjectID || event.StartAt.IsZero() {
		return primitive.NilObjectID, errors.New("calendar event requires userId and startAt")
	}

	event.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = domain.EventScheduled
	}

	result, err := r.events.InsertOne(ctx, event)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted event ID")
	}
	return insertedID, nil
}

// GetEventByID retrieves a calendar event by its ID.
func (r *mongoCalendarRepository) GetEventByID(ctx context.Context, id primitive.ObjectID) (*domain.CalendarEvent, error) {
	var event domain.CalendarEvent
	filter := bson.M{"_id": id}

	err := r.events.FindOne(ctx, filter).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// UpdateEvent rewrites the mutable fields of an event.
func (r *mongoCalendarRepository) UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	if event.ID == primitive.NilObjectID {
		return errors.New("event ID is required for update")
	}

	filter := bson.M{"_id": event.ID}
	updateFields := bson.M{
		"title":        event.Title,
		"startAt":      event.StartAt,
		"endAt":        event.EndAt,
		"status":       event.Status,
		"userModified": event.UserModified,
		"updatedAt":    time.Now().UTC(),
	}
	if event.PlannedSessionID != nil {
		updateFields["plannedSessionId"] = *event.PlannedSessionID
	}

	result, err := r.events.UpdateOne(ctx, filter, bson.M{"$set": updateFields})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListEventsInRange returns a user's events with startAt in [from, to), oldest first.
func (r *mongoCalendarRepository) ListEventsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error) {
	filter := bson.M{
		"userId":  userID,
		"startAt": bson.M{"$gte": from, "$lt": to},
	}
	return r.findEvents(ctx, filter)
}

// ListCompletedInRange returns the user's completed events in [from, to).
func (r *mongoCalendarRepository) ListCompletedInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error) {
	filter := bson.M{
		"userId":  userID,
		"status":  domain.EventCompleted,
		"startAt": bson.M{"$gte": from, "$lt": to},
	}
	return r.findEvents(ctx, filter)
}

func (r *mongoCalendarRepository) findEvents(ctx context.Context, filter bson.M) ([]domain.CalendarEvent, error) {
	var events []domain.CalendarEvent
	findOptions := options.Find().SetSort(bson.D{{Key: "startAt", Value: 1}})

	cursor, err := r.events.Find(ctx, filter, findOptions)
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

// DeleteFutureProjected removes the projector's own unedited future rows,
// along with the planned sessions those rows own. The filter is the overlay
// rule: user-created and user-edited events never match.
func (r *mongoCalendarRepository) DeleteFutureProjected(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error) {
	filter := bson.M{
		"userId":       userID,
		"source":       domain.SourceProgramProjection,
		"userModified": false,
		"startAt":      bson.M{"$gte": from},
	}

	// Collect the matched ids first so the owned planned sessions go with
	// their events. A planned session without an owning event is an orphan.
	cursor, err := r.events.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, err
	}
	var matched []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err = cursor.All(ctx, &matched); err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}

	ids := make([]primitive.ObjectID, 0, len(matched))
	for _, doc := range matched {
		ids = append(ids, doc.ID)
	}

	if _, err = r.planned.DeleteMany(ctx, bson.M{"eventId": bson.M{"$in": ids}}); err != nil {
		return 0, err
	}

	result, err := r.events.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// CountUpcomingScheduled counts scheduled events with startAt >= from.
func (r *mongoCalendarRepository) CountUpcomingScheduled(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error) {
	filter := bson.M{
		"userId":  userID,
		"status":  domain.EventScheduled,
		"startAt": bson.M{"$gte": from},
	}
	return r.events.CountDocuments(ctx, filter)
}

// InsertPlannedSession inserts the structured workout intent for an event.
func (r *mongoCalendarRepository) InsertPlannedSession(ctx context.Context, session *domain.PlannedSession) (primitive.ObjectID, error) {
	if session.EventID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("planned session requires eventId")
	}

	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now().UTC()

	result, err := r.planned.InsertOne(ctx, session)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted planned session ID")
	}
	return insertedID, nil
}

// GetPlannedSession retrieves a planned session by its ID.
func (r *mongoCalendarRepository) GetPlannedSession(ctx context.Context, id primitive.ObjectID) (*domain.PlannedSession, error) {
	var session domain.PlannedSession
	filter := bson.M{"_id": id}

	err := r.planned.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// SetEventPlannedSession links an event to the planned session it owns.
func (r *mongoCalendarRepository) SetEventPlannedSession(ctx context.Context, eventID, plannedSessionID primitive.ObjectID) error {
	filter := bson.M{"_id": eventID}
	update := bson.M{
		"$set": bson.M{
			"plannedSessionId": plannedSessionID,
			"updatedAt":        time.Now().UTC(),
		},
	}

	result, err := r.events.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureCalendarIndexes creates necessary indexes for the calendar collections.
func EnsureCalendarIndexes(ctx context.Context, db *mongo.Database) {
	_, err := db.Collection(calendarEventCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "startAt", Value: 1}},
			Options: options.Index(),
		},
		{
			// Supports the projector's delete filter
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "source", Value: 1}, {Key: "userModified", Value: 1}, {Key: "startAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}, {Key: "startAt", Value: 1}},
			Options: options.Index(),
		},
	})
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", calendarEventCollectionName, err)
	}

	_, err = db.Collection(plannedSessionCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "eventId", Value: 1}},
			Options: options.Index(),
		},
	})
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", plannedSessionCollectionName, err)
	}
}
