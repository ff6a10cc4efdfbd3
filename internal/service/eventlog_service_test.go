package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestEventLog(repo *fakeEventRepo) *EventLog {
	log := NewEventLog(repo)
	log.sleep = func(time.Duration) {} // no real jitter in tests
	return log
}

func TestEventLogAppendAssignsSequentialNumbers(t *testing.T) {
	repo := &fakeEventRepo{}
	log := newTestEventLog(repo)
	sessionID := primitive.NewObjectID()

	for i := 1; i <= 3; i++ {
		event, err := log.Append(context.Background(), sessionID, domain.EventStepResult, map[string]any{"n": i})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
		if event.SequenceNumber != int64(i) {
			t.Fatalf("expected sequence %d, got %d", i, event.SequenceNumber)
		}
	}
}

func TestEventLogAppendIsPerSession(t *testing.T) {
	repo := &fakeEventRepo{}
	log := newTestEventLog(repo)
	sessionA := primitive.NewObjectID()
	sessionB := primitive.NewObjectID()

	if _, err := log.Append(context.Background(), sessionA, domain.EventStepResult, nil); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	event, err := log.Append(context.Background(), sessionB, domain.EventStepResult, nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if event.SequenceNumber != 1 {
		t.Fatalf("expected session B to start at sequence 1, got %d", event.SequenceNumber)
	}
}

func TestEventLogAppendRetriesSequenceConflict(t *testing.T) {
	repo := &fakeEventRepo{
		// Two conflicts, then the natural insert succeeds.
		forcedInsertErrs: []error{repository.ErrDuplicateKey, repository.ErrDuplicateKey, nil},
	}
	log := newTestEventLog(repo)

	event, err := log.Append(context.Background(), primitive.NewObjectID(), domain.EventSkip, nil)
	if err != nil {
		t.Fatalf("Append should recover from sequence conflicts: %v", err)
	}
	if event.SequenceNumber != 1 {
		t.Fatalf("expected sequence 1 after retries, got %d", event.SequenceNumber)
	}
}

func TestEventLogAppendGivesUpAfterRetryBudget(t *testing.T) {
	conflicts := make([]error, maxSequenceRetries)
	for i := range conflicts {
		conflicts[i] = repository.ErrDuplicateKey
	}
	repo := &fakeEventRepo{forcedInsertErrs: conflicts}
	log := newTestEventLog(repo)

	_, err := log.Append(context.Background(), primitive.NewObjectID(), domain.EventStepResult, nil)
	if !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
	if !errors.Is(err, repository.ErrDuplicateKey) {
		t.Fatalf("expected the last conflict error wrapped, got %v", err)
	}
}

func TestEventLogAppendPropagatesFatalErrors(t *testing.T) {
	fatal := errors.New("connection reset")
	repo := &fakeEventRepo{forcedInsertErrs: []error{fatal}}
	log := newTestEventLog(repo)

	_, err := log.Append(context.Background(), primitive.NewObjectID(), domain.EventStepResult, nil)
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error to propagate without retry, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected no events stored after fatal error, got %d", len(repo.events))
	}
}

func TestEventLogHistoryOrderedBySequence(t *testing.T) {
	repo := &fakeEventRepo{}
	log := newTestEventLog(repo)
	sessionID := primitive.NewObjectID()

	for i := 0; i < 4; i++ {
		if _, err := log.Append(context.Background(), sessionID, domain.EventStepResult, nil); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	events, err := log.History(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i, event := range events {
		if event.SequenceNumber != int64(i+1) {
			t.Fatalf("expected sequence %d at position %d, got %d", i+1, i, event.SequenceNumber)
		}
	}
}
