package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StepKind categorizes what the client UI renders for a step.
type StepKind string

const (
	StepKindInfo     StepKind = "info"
	StepKindQuestion StepKind = "question"
	StepKindMovement StepKind = "movement"
	StepKindTimer    StepKind = "timer"
	StepKindComplete StepKind = "complete"
)

// AssessmentStep is one entry in the fixed onboarding flow.
type AssessmentStep struct {
	ID     string   `json:"id"`
	Kind   StepKind `json:"kind"`
	Title  string   `json:"title"`
	Prompt string   `json:"prompt,omitempty"`
}

// AssessmentSteps is the fixed, ordered onboarding flow. Ordering is purely
// positional; the last step is terminal and has no outgoing transition.
var AssessmentSteps = []AssessmentStep{
	{ID: "welcome", Kind: StepKindInfo, Title: "Welcome", Prompt: "A few quick steps to tailor your training."},
	{ID: "goals", Kind: StepKindQuestion, Title: "Training Goals", Prompt: "What do you want to get out of training?"},
	{ID: "training_history", Kind: StepKindQuestion, Title: "Training History", Prompt: "How have you trained over the last year?"},
	{ID: "equipment", Kind: StepKindQuestion, Title: "Available Equipment", Prompt: "What equipment do you have access to?"},
	{ID: "bodyweight_squat", Kind: StepKindMovement, Title: "Bodyweight Squat", Prompt: "Perform 10 slow bodyweight squats and note how they felt."},
	{ID: "pushup_test", Kind: StepKindMovement, Title: "Push-up Test", Prompt: "Do as many push-ups as you can with good form."},
	{ID: "plank_hold", Kind: StepKindTimer, Title: "Plank Hold", Prompt: "Hold a plank for as long as you can."},
	{ID: "pain_screen", Kind: StepKindQuestion, Title: "Pain & Injuries", Prompt: "Any current pain or past injuries we should work around?"},
	{ID: "weekly_availability", Kind: StepKindQuestion, Title: "Weekly Availability", Prompt: "How many days per week can you train, and which days?"},
	{ID: "assessment_complete", Kind: StepKindComplete, Title: "All Done", Prompt: "We have everything we need to build your baseline."},
}

// StepByID returns the step with the given id, or nil if the id is not in the flow.
func StepByID(id string) *AssessmentStep {
	for i := range AssessmentSteps {
		if AssessmentSteps[i].ID == id {
			return &AssessmentSteps[i]
		}
	}
	return nil
}

// NextStep returns the step following the given one in the fixed order.
// It returns nil for the last step and for ids not present in the flow,
// which makes the corresponding transition a no-op.
func NextStep(id string) *AssessmentStep {
	for i := range AssessmentSteps {
		if AssessmentSteps[i].ID == id {
			if i+1 < len(AssessmentSteps) {
				return &AssessmentSteps[i+1]
			}
			return nil
		}
	}
	return nil
}

// SessionStatus type for assessment session lifecycle
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// AssessmentSession tracks a user's progress through the onboarding flow.
// At most one in_progress session per user is expected; this is enforced by
// query, not by a unique index (see service layer).
type AssessmentSession struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Status        SessionStatus      `bson:"status" json:"status"`
	CurrentStepID string             `bson:"currentStepId" json:"currentStepId"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EventType classifies entries in the per-session event log.
type EventType string

const (
	EventStepResult        EventType = "step_result"
	EventSkip              EventType = "skip"
	EventBaselineGenerated EventType = "baseline_generated"
)

// AssessmentEvent is an immutable, append-only audit record. SequenceNumber
// is strictly increasing and unique within a session (unique compound index);
// gaps are tolerated under retry storms, duplicates are not.
type AssessmentEvent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID      primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	SequenceNumber int64              `bson:"sequenceNumber" json:"sequenceNumber"`
	EventType      EventType          `bson:"eventType" json:"eventType"`
	Payload        map[string]any     `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// StepResult stores the free-form payload a user submitted for one step.
// At most one row per (session, step) in the happy path; writes are upserts.
type StepResult struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	StepID    string             `bson:"stepId" json:"stepId"`
	Result    map[string]any     `bson:"result" json:"result"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// BaselineData is the structured synthesis the model is asked to produce.
type BaselineData struct {
	Readiness    string   `bson:"readiness" json:"readiness"`
	Strength     string   `bson:"strength" json:"strength"`
	Mobility     string   `bson:"mobility" json:"mobility"`
	Conditioning string   `bson:"conditioning" json:"conditioning"`
	PainFlags    []string `bson:"painFlags" json:"pain_flags"`
	Confidence   float64  `bson:"confidence" json:"confidence"`
	Notes        string   `bson:"notes" json:"notes"`
}

// Baseline is a versioned snapshot of the synthesized assessment. Versions
// start at 1 and only ever grow; the latest version is authoritative.
type Baseline struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Version   int                `bson:"version" json:"version"`
	Data      BaselineData       `bson:"data" json:"data"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
