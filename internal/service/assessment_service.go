package service

import (
	"context"
	"errors"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrSessionNotFound = errors.New("assessment session not found")
)

// StepSubmission is the outcome of submitting or skipping a step: the stored
// result (nil for skips), the next step to render (nil when terminal), and
// the session with its advanced cursor.
type StepSubmission struct {
	Result   *domain.StepResult        `json:"result,omitempty"`
	NextStep *domain.AssessmentStep    `json:"nextStep,omitempty"`
	Session  *domain.AssessmentSession `json:"session"`
}

// AssessmentService drives a user through the fixed onboarding flow.
type AssessmentService interface {
	GetOrCreateSession(ctx context.Context, userID primitive.ObjectID) (*domain.AssessmentSession, error)
	SubmitStepResult(ctx context.Context, sessionID primitive.ObjectID, stepID string, result map[string]any) (*StepSubmission, error)
	SkipStep(ctx context.Context, sessionID primitive.ObjectID, stepID string, reason string) (*StepSubmission, error)
}

// assessmentService implements the AssessmentService interface.
type assessmentService struct {
	sessions repository.SessionRepository
	results  repository.StepResultRepository
	eventLog *EventLog
}

// NewAssessmentService creates a new instance of assessmentService.
func NewAssessmentService(
	sessions repository.SessionRepository,
	results repository.StepResultRepository,
	eventLog *EventLog,
) AssessmentService {
	return &assessmentService{
		sessions: sessions,
		results:  results,
		eventLog: eventLog,
	}
}

// GetOrCreateSession returns the user's in-progress session, creating one
// positioned at the first step when none exists. Two racing callers can each
// create a session; the rare duplicate is accepted rather than guarded with a
// unique index, and the newest one wins on subsequent reads.
func (s *assessmentService) GetOrCreateSession(ctx context.Context, userID primitive.ObjectID) (*domain.AssessmentSession, error) {
	session, err := s.sessions.GetInProgressByUserID(ctx, userID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	session = &domain.AssessmentSession{
		UserID:        userID,
		Status:        domain.SessionInProgress,
		CurrentStepID: domain.AssessmentSteps[0].ID,
	}
	id, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id
	return session, nil
}

// SubmitStepResult records the user's answer for a step, appends a
// step_result event, and advances the session's cursor.
func (s *assessmentService) SubmitStepResult(ctx context.Context, sessionID primitive.ObjectID, stepID string, result map[string]any) (*StepSubmission, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.eventLog.Append(ctx, sessionID, domain.EventStepResult, map[string]any{
		"stepId": stepID,
		"result": result,
	}); err != nil {
		return nil, err
	}

	stepResult := &domain.StepResult{
		SessionID: sessionID,
		StepID:    stepID,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.results.Upsert(ctx, stepResult); err != nil {
		return nil, err
	}

	next, err := s.advance(ctx, session)
	if err != nil {
		return nil, err
	}
	return &StepSubmission{Result: stepResult, NextStep: next, Session: session}, nil
}

// SkipStep records a skip event and advances exactly like a submission, but
// stores no result row.
func (s *assessmentService) SkipStep(ctx context.Context, sessionID primitive.ObjectID, stepID string, reason string) (*StepSubmission, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.eventLog.Append(ctx, sessionID, domain.EventSkip, map[string]any{
		"stepId": stepID,
		"reason": reason,
	}); err != nil {
		return nil, err
	}

	next, err := s.advance(ctx, session)
	if err != nil {
		return nil, err
	}
	return &StepSubmission{NextStep: next, Session: session}, nil
}

func (s *assessmentService) getSession(ctx context.Context, sessionID primitive.ObjectID) (*domain.AssessmentSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// advance moves the session to the step after its current one. The last step
// has no successor and an unknown currentStepId resolves to no step at all;
// both make the transition a no-op.
func (s *assessmentService) advance(ctx context.Context, session *domain.AssessmentSession) (*domain.AssessmentStep, error) {
	next := domain.NextStep(session.CurrentStepID)
	if next == nil {
		return nil, nil
	}
	if err := s.sessions.UpdateCurrentStep(ctx, session.ID, next.ID); err != nil {
		return nil, err
	}
	session.CurrentStepID = next.ID
	session.UpdatedAt = time.Now().UTC()
	return next, nil
}
