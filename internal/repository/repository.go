package repository

import (
	"context"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// SessionRepository defines the interface for assessment session data.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.AssessmentSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AssessmentSession, error)
	// GetInProgressByUserID returns the user's most recently updated
	// in_progress session, or ErrNotFound.
	GetInProgressByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.AssessmentSession, error)
	UpdateCurrentStep(ctx context.Context, sessionID primitive.ObjectID, stepID string) error
	MarkCompleted(ctx context.Context, sessionID primitive.ObjectID) error
}

// EventRepository defines the interface for the append-only assessment event log.
// Insert must return ErrDuplicateKey when the (sessionId, sequenceNumber)
// uniqueness constraint rejects the write; that constraint is the log's
// compare-and-swap.
type EventRepository interface {
	Insert(ctx context.Context, event *domain.AssessmentEvent) (primitive.ObjectID, error)
	// MaxSequence returns the highest sequence number recorded for the
	// session, or 0 when the session has no events yet.
	MaxSequence(ctx context.Context, sessionID primitive.ObjectID) (int64, error)
	ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.AssessmentEvent, error)
}

// StepResultRepository defines the interface for per-step assessment results.
type StepResultRepository interface {
	Upsert(ctx context.Context, result *domain.StepResult) error
	// ListBySession returns results ordered by creation time, oldest first.
	ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.StepResult, error)
}

// BaselineRepository defines the interface for versioned baseline snapshots.
type BaselineRepository interface {
	Create(ctx context.Context, baseline *domain.Baseline) (primitive.ObjectID, error)
	LatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*domain.Baseline, error)
	LatestByUser(ctx context.Context, userID primitive.ObjectID) (*domain.Baseline, error)
}

// ProgramRepository defines the interface for versioned program documents,
// the per-user active pointer, and the program audit log.
type ProgramRepository interface {
	CreateVersion(ctx context.Context, program *domain.Program) (primitive.ObjectID, error)
	GetVersion(ctx context.Context, programID primitive.ObjectID, version int) (*domain.Program, error)
	LatestVersion(ctx context.Context, programID primitive.ObjectID) (*domain.Program, error)
	GetActivePointer(ctx context.Context, userID primitive.ObjectID) (*domain.ActiveProgramPointer, error)
	SetActivePointer(ctx context.Context, userID, programID primitive.ObjectID, version int) error
	LogEvent(ctx context.Context, event *domain.ProgramEvent) error
}

// CalendarRepository defines the interface for calendar events and the
// planned sessions they own.
type CalendarRepository interface {
	InsertEvent(ctx context.Context, event *domain.CalendarEvent) (primitive.ObjectID, error)
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error
	ListEventsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error)
	ListCompletedInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error)
	// DeleteFutureProjected removes events with source=program_projection,
	// userModified=false and startAt >= from. User-created or user-edited
	// rows are never matched.
	DeleteFutureProjected(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error)
	CountUpcomingScheduled(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error)
	InsertPlannedSession(ctx context.Context, session *domain.PlannedSession) (primitive.ObjectID, error)
	GetPlannedSession(ctx context.Context, id primitive.ObjectID) (*domain.PlannedSession, error)
	SetEventPlannedSession(ctx context.Context, eventID, plannedSessionID primitive.ObjectID) error
}

// ReportRepository defines the interface for weekly report snapshots.
type ReportRepository interface {
	Upsert(ctx context.Context, report *domain.WeeklyReport) error
	GetByUserAndWeek(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*domain.WeeklyReport, error)
}
