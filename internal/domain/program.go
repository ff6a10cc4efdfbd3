package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeeklyTemplate drives the calendar projection.
type WeeklyTemplate struct {
	DaysPerWeek   int      `bson:"daysPerWeek" json:"days_per_week"`
	PreferredDays []string `bson:"preferredDays,omitempty" json:"preferred_days,omitempty"` // weekday names, e.g. "mon" or "monday"
}

// SessionTemplate is one reusable workout blueprint within a program.
type SessionTemplate struct {
	Focus       string   `bson:"focus" json:"focus"`
	DurationMin int      `bson:"durationMin" json:"duration_min"`
	Equipment   []string `bson:"equipment,omitempty" json:"equipment,omitempty"`
	Notes       string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Progression holds scaling rules the projector carries onto planned sessions.
type Progression struct {
	TimeScaling map[string]string `bson:"timeScaling,omitempty" json:"time_scaling,omitempty"`
}

// Program is one immutable version of a training program: the coach-facing
// markdown document plus the structured template the projector consumes.
// ProgramID is the stable logical id shared by all versions; each version is
// its own document, unique on (programId, version).
type Program struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProgramID      primitive.ObjectID `bson:"programId" json:"programId"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	Version        int                `bson:"version" json:"version"`
	Markdown       string             `bson:"markdown" json:"markdown"`
	WeeklyTemplate WeeklyTemplate     `bson:"weeklyTemplate" json:"weeklyTemplate"`
	Sessions       []SessionTemplate  `bson:"sessions" json:"sessions"`
	Progression    Progression        `bson:"progression,omitempty" json:"progression,omitempty"`
	ArchiveKey     string             `bson:"archiveKey,omitempty" json:"-"` // object-storage key of the markdown snapshot, if archived
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// ActiveProgramPointer names the (programId, version) a user currently trains
// under. One per user. After a successful rewrite it always matches the
// latest version of that program.
type ActiveProgramPointer struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	ProgramID      primitive.ObjectID `bson:"programId" json:"programId"`
	ProgramVersion int                `bson:"programVersion" json:"programVersion"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProgramEventType classifies program-level audit records.
type ProgramEventType string

const (
	ProgramEventCreated           ProgramEventType = "created"
	ProgramEventWeeklyReview      ProgramEventType = "weekly_review"
	ProgramEventCatchUpProjection ProgramEventType = "catch_up_projection"
)

// ProgramEvent is an append-only audit record of program lifecycle changes.
type ProgramEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	ProgramID primitive.ObjectID `bson:"programId" json:"programId"`
	Version   int                `bson:"version" json:"version"`
	EventType ProgramEventType   `bson:"eventType" json:"eventType"`
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
