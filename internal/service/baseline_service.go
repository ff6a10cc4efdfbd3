package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/llm"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrSynthesisParse = errors.New("failed to parse baseline synthesis response")
)

const baselineSystemPrompt = `You are a fitness assessment analyst. You receive the raw step results of a user's onboarding assessment and synthesize them into a structured baseline. Respond with a single JSON object and nothing else. The object must have exactly these fields: "readiness" (string), "strength" (string), "mobility" (string), "conditioning" (string), "pain_flags" (array of strings), "confidence" (number between 0 and 1), "notes" (string).`

const baselineMaxTokens = 1024

// BaselineService turns a completed assessment into a versioned baseline.
type BaselineService interface {
	SynthesizeBaseline(ctx context.Context, sessionID primitive.ObjectID) (*domain.Baseline, error)
	LatestForUser(ctx context.Context, userID primitive.ObjectID) (*domain.Baseline, error)
}

// baselineService implements the BaselineService interface.
type baselineService struct {
	sessions  repository.SessionRepository
	results   repository.StepResultRepository
	baselines repository.BaselineRepository
	eventLog  *EventLog
	completer llm.Completer
}

// NewBaselineService creates a new instance of baselineService.
func NewBaselineService(
	sessions repository.SessionRepository,
	results repository.StepResultRepository,
	baselines repository.BaselineRepository,
	eventLog *EventLog,
	completer llm.Completer,
) BaselineService {
	return &baselineService{
		sessions:  sessions,
		results:   results,
		baselines: baselines,
		eventLog:  eventLog,
		completer: completer,
	}
}

// SynthesizeBaseline collects the session's step results, asks the model for
// a structured summary, and persists it as the next baseline version. The
// completion call is not retried here; a parse failure surfaces as
// ErrSynthesisParse and the caller decides whether to re-run the operation.
// On success the session is marked completed, which is terminal.
func (s *baselineService) SynthesizeBaseline(ctx context.Context, sessionID primitive.ObjectID) (*domain.Baseline, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	results, err := s.results.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:    baselineSystemPrompt,
		User:      buildBaselinePrompt(results),
		MaxTokens: baselineMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	data, err := parseBaselineJSON(raw)
	if err != nil {
		return nil, err
	}

	version := 1
	if prev, err := s.baselines.LatestBySession(ctx, sessionID); err == nil {
		version = prev.Version + 1
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	baseline := &domain.Baseline{
		SessionID: sessionID,
		UserID:    session.UserID,
		Version:   version,
		Data:      data,
	}
	id, err := s.baselines.Create(ctx, baseline)
	if err != nil {
		return nil, err
	}
	baseline.ID = id

	if _, err := s.eventLog.Append(ctx, sessionID, domain.EventBaselineGenerated, map[string]any{
		"baselineId": id.Hex(),
		"version":    version,
	}); err != nil {
		return nil, err
	}

	if err := s.sessions.MarkCompleted(ctx, sessionID); err != nil {
		return nil, err
	}
	return baseline, nil
}

// LatestForUser returns the user's most recent baseline.
func (s *baselineService) LatestForUser(ctx context.Context, userID primitive.ObjectID) (*domain.Baseline, error) {
	return s.baselines.LatestByUser(ctx, userID)
}

// buildBaselinePrompt renders the step results, in submission order, into the
// user message for the synthesis request.
func buildBaselinePrompt(results []domain.StepResult) string {
	var b strings.Builder
	b.WriteString("Assessment step results, in the order they were submitted:\n\n")
	for _, r := range results {
		step := domain.StepByID(r.StepID)
		title := r.StepID
		if step != nil {
			title = step.Title
		}
		fmt.Fprintf(&b, "## %s (%s)\n", title, r.StepID)
		payload, err := json.Marshal(r.Result)
		if err != nil {
			payload = []byte("{}")
		}
		b.Write(payload)
		b.WriteString("\n\n")
	}
	b.WriteString("Synthesize these into the baseline JSON object described in your instructions.")
	return b.String()
}

// parseBaselineJSON extracts the first balanced-looking {...} substring (first
// '{' to last '}') and unmarshals it. Best-effort by contract; anything that
// does not parse is an ErrSynthesisParse. Kept behind this named function so a
// stricter strategy (structured output mode) can replace it without touching
// callers.
func parseBaselineJSON(raw string) (domain.BaselineData, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return domain.BaselineData{}, fmt.Errorf("%w: no JSON object in response", ErrSynthesisParse)
	}

	var data domain.BaselineData
	if err := json.Unmarshal([]byte(raw[start:end+1]), &data); err != nil {
		return domain.BaselineData{}, fmt.Errorf("%w: %v", ErrSynthesisParse, err)
	}
	return data, nil
}
