package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CalendarEventStatus type for event lifecycle
type CalendarEventStatus string

const (
	EventScheduled CalendarEventStatus = "scheduled"
	EventCompleted CalendarEventStatus = "completed"
	EventSkipped   CalendarEventStatus = "skipped"
)

// CalendarEventSource records who created an event.
type CalendarEventSource string

const (
	SourceProgramProjection CalendarEventSource = "program_projection"
	SourceUserCreated       CalendarEventSource = "user_created"
)

// CalendarEvent is one concrete slot on a user's calendar. Projection only
// ever replaces rows it created itself and that carry UserModified=false;
// user-created or user-edited rows are an overlay the projector must not touch.
type CalendarEvent struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID  `bson:"userId" json:"userId"`
	Title            string              `bson:"title" json:"title"`
	EventType        string              `bson:"eventType" json:"eventType"` // e.g. "workout"
	StartAt          time.Time           `bson:"startAt" json:"startAt"`
	EndAt            time.Time           `bson:"endAt" json:"endAt"`
	Status           CalendarEventStatus `bson:"status" json:"status"`
	Source           CalendarEventSource `bson:"source" json:"source"`
	UserModified     bool                `bson:"userModified" json:"userModified"`
	PlannedSessionID *primitive.ObjectID `bson:"plannedSessionId,omitempty" json:"plannedSessionId,omitempty"`
	ProgramID        *primitive.ObjectID `bson:"programId,omitempty" json:"programId,omitempty"`
	ProgramVersion   int                 `bson:"programVersion,omitempty" json:"programVersion,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// PlannedSession is the structured workout intent attached to exactly one
// calendar event, which owns it.
type PlannedSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID      primitive.ObjectID `bson:"eventId" json:"eventId"`
	Focus        string             `bson:"focus" json:"focus"`
	DurationMin  int                `bson:"durationMin" json:"durationMin"`
	Equipment    []string           `bson:"equipment,omitempty" json:"equipment,omitempty"`
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
	TimeVariants map[string]string  `bson:"timeVariants,omitempty" json:"timeVariants,omitempty"` // from the program's progression.time_scaling
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
