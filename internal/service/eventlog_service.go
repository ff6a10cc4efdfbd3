package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrSequenceExhausted is returned when a writer loses the sequence race on
// every attempt in its retry budget.
var ErrSequenceExhausted = errors.New("event sequence retries exhausted")

// Bounded retry budget for sequence-number races. Gaps are possible when a
// writer gives up mid-storm; duplicates are not (unique index).
const maxSequenceRetries = 5

// sleepFn is swapped out in tests to avoid real jitter delays.
type sleepFn func(time.Duration)

// EventLog assigns strictly increasing per-session sequence numbers without a
// transactional counter: read max, insert max+1, and treat the unique-index
// conflict as "another writer won, recompute".
type EventLog struct {
	events repository.EventRepository
	sleep  sleepFn
}

// NewEventLog creates the append-only assessment event log.
func NewEventLog(events repository.EventRepository) *EventLog {
	return &EventLog{
		events: events,
		sleep:  time.Sleep,
	}
}

// Append records one event for the session and returns it with its assigned
// sequence number. Storage errors other than a sequence conflict propagate
// immediately; exhausting the retry budget returns ErrSequenceExhausted
// wrapping the last conflict.
func (l *EventLog) Append(ctx context.Context, sessionID primitive.ObjectID, eventType domain.EventType, payload map[string]any) (*domain.AssessmentEvent, error) {
	var lastErr error
	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		maxSeq, err := l.events.MaxSequence(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		event := &domain.AssessmentEvent{
			SessionID:      sessionID,
			SequenceNumber: maxSeq + 1,
			EventType:      eventType,
			Payload:        payload,
			CreatedAt:      time.Now().UTC(),
		}

		id, err := l.events.Insert(ctx, event)
		if err == nil {
			event.ID = id
			return event, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		lastErr = err

		// Randomized delay to desynchronize colliding writers.
		l.sleep(time.Duration(5+rand.Intn(25)) * time.Millisecond)
	}
	return nil, fmt.Errorf("%w: %w", ErrSequenceExhausted, lastErr)
}

// History returns a session's events in sequence order.
func (l *EventLog) History(ctx context.Context, sessionID primitive.ObjectID) ([]domain.AssessmentEvent, error) {
	return l.events.ListBySession(ctx, sessionID)
}
