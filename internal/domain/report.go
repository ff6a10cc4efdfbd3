package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeeklyStats are the computed numbers for one Monday-start week.
type WeeklyStats struct {
	CompletedSessions int            `bson:"completedSessions" json:"completedSessions"`
	PlannedSessions   int            `bson:"plannedSessions" json:"plannedSessions"`
	SkippedSessions   int            `bson:"skippedSessions" json:"skippedSessions"`
	TotalMinutes      int            `bson:"totalMinutes" json:"totalMinutes"`
	FocusBreakdown    map[string]int `bson:"focusBreakdown,omitempty" json:"focusBreakdown,omitempty"`
}

// WeeklyReport is the persisted per-user, per-week snapshot. One per
// (user, weekStart); regeneration overwrites in place.
type WeeklyReport struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	WeekStart  time.Time          `bson:"weekStart" json:"weekStart"`
	Stats      WeeklyStats        `bson:"stats" json:"stats"`
	Highlights []string           `bson:"highlights,omitempty" json:"highlights,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
