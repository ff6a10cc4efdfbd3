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
	programCollectionName        = "programs"
	programPointerCollectionName = "active_programs"
	programEventCollectionName   = "program_events"
)

// mongoProgramRepository implements repository.ProgramRepository
type mongoProgramRepository struct {
	programs *mongo.Collection
	pointers *mongo.Collection
	events   *mongo.Collection
}

// NewMongoProgramRepository creates a new program repository backed by MongoDB.
func NewMongoProgramRepository(db *mongo.Database) repository.ProgramRepository {
	return &mongoProgramRepository{
		programs: db.Collection(programCollectionName),
		pointers: db.Collection(programPointerCollectionName),
		events:   db.Collection(programEventCollectionName),
	}
}

// CreateVersion inserts one immutable program version. Versions share a
// logical programId and are unique on (programId, version).
func (r *mongoProgramRepository) CreateVersion(ctx context.Context, program *domain.Program) (primitive.ObjectID, error) {
	if program.ProgramID == primitive.NilObjectID || program.UserID == primitive.NilObjectID || program.Version < 1 {
		return primitive.NilObjectID, errors.New("program requires programId, userId and version >= 1")
	}

	program.ID = primitive.NewObjectID()
	program.CreatedAt = time.Now().UTC()

	result, err := r.programs.InsertOne(ctx, program)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted program ID")
	}
	return insertedID, nil
}

// GetVersion retrieves one specific program version.
func (r *mongoProgramRepository) GetVersion(ctx context.Context, programID primitive.ObjectID, version int) (*domain.Program, error) {
	var program domain.Program
	filter := bson.M{"programId": programID, "version": version}

	err := r.programs.FindOne(ctx, filter).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// LatestVersion retrieves the highest version of a program.
func (r *mongoProgramRepository) LatestVersion(ctx context.Context, programID primitive.ObjectID) (*domain.Program, error) {
	var program domain.Program
	filter := bson.M{"programId": programID}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	err := r.programs.FindOne(ctx, filter, findOptions).Decode(&program)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &program, nil
}

// GetActivePointer returns the user's active (programId, version) pointer.
func (r *mongoProgramRepository) GetActivePointer(ctx context.Context, userID primitive.ObjectID) (*domain.ActiveProgramPointer, error) {
	var pointer domain.ActiveProgramPointer
	filter := bson.M{"userId": userID}

	err := r.pointers.FindOne(ctx, filter).Decode(&pointer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &pointer, nil
}

// SetActivePointer repoints the user's single active-program record,
// creating it on first use.
func (r *mongoProgramRepository) SetActivePointer(ctx context.Context, userID, programID primitive.ObjectID, version int) error {
	if programID == primitive.NilObjectID || version < 1 {
		return errors.New("active pointer requires programId and version >= 1")
	}

	filter := bson.M{"userId": userID}
	update := bson.M{
		"$set": bson.M{
			"programId":      programID,
			"programVersion": version,
			"updatedAt":      time.Now().UTC(),
		},
		"$setOnInsert": bson.M{
			"userId": userID,
		},
	}

	_, err := r.pointers.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// LogEvent appends a program audit record.
func (r *mongoProgramRepository) LogEvent(ctx context.Context, event *domain.ProgramEvent) error {
	if event.ProgramID == primitive.NilObjectID {
		return errors.New("program event requires programId")
	}

	event.ID = primitive.NewObjectID()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := r.events.InsertOne(ctx, event)
	return err
}

// EnsureProgramIndexes creates necessary indexes for the program collections.
func EnsureProgramIndexes(ctx context.Context, db *mongo.Database) {
	_, err := db.Collection(programCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "programId", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index(),
		},
	})
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", programCollectionName, err)
	}

	_, err = db.Collection(programPointerCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", programPointerCollectionName, err)
	}

	_, err = db.Collection(programEventCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "programId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	})
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", programEventCollectionName, err)
	}
}
