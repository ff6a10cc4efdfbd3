package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrEventNotFound = errors.New("calendar event not found")
)

const (
	// Rolling horizon the projector fills, counted from the start of today.
	projectionHorizonDays = 28
	// Projected workouts default to a morning slot; users move them as needed.
	defaultEventStartHour  = 9
	defaultSessionDuration = 45 // minutes
)

// Skip reasons for projection no-ops.
const (
	SkipNoActiveProgram = "no_active_program"
	SkipScheduleCurrent = "schedule_current"
)

// ProjectionResult reports what one projector run did. Skipped is set for
// expected no-op conditions so batch callers can tell "nothing to do" from
// "something broke".
type ProjectionResult struct {
	Skipped        string             `json:"skipped,omitempty"`
	Created        int                `json:"created"`
	Deleted        int64              `json:"deleted"`
	ProgramID      primitive.ObjectID `json:"programId,omitempty"`
	ProgramVersion int                `json:"programVersion,omitempty"`
}

// EventUpdate carries the user-editable fields of a calendar event. Nil
// means "leave unchanged". Applying any update marks the event userModified,
// which permanently shields it from reprojection.
type EventUpdate struct {
	Title   *string                     `json:"title,omitempty"`
	Status  *domain.CalendarEventStatus `json:"status,omitempty"`
	StartAt *time.Time                  `json:"startAt,omitempty"`
	EndAt   *time.Time                  `json:"endAt,omitempty"`
}

// CalendarService projects programs onto the calendar and manages user edits.
type CalendarService interface {
	SyncCalendarFromProgram(ctx context.Context, userID primitive.ObjectID) (*ProjectionResult, error)
	ListEvents(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, userID, eventID primitive.ObjectID, update EventUpdate) (*domain.CalendarEvent, error)
	CreateUserEvent(ctx context.Context, userID primitive.ObjectID, title string, startAt, endAt time.Time) (*domain.CalendarEvent, error)
}

// calendarService implements the CalendarService interface.
type calendarService struct {
	programs repository.ProgramRepository
	calendar repository.CalendarRepository
	now      func() time.Time
}

// NewCalendarService creates a new instance of calendarService.
func NewCalendarService(
	programs repository.ProgramRepository,
	calendar repository.CalendarRepository,
) CalendarService {
	return &calendarService{
		programs: programs,
		calendar: calendar,
		now:      time.Now,
	}
}

// SyncCalendarFromProgram deterministically re-derives the projected events
// for the active program over the 28-day horizon. Safe to re-run: the
// projector only replaces its own unedited rows; anything the user created or
// edited is an overlay it never touches. Delete-then-insert is not
// transactional, so a failure partway through can leave partial state; the
// next sync run repairs it.
func (s *calendarService) SyncCalendarFromProgram(ctx context.Context, userID primitive.ObjectID) (*ProjectionResult, error) {
	pointer, err := s.programs.GetActivePointer(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ProjectionResult{Skipped: SkipNoActiveProgram}, nil
		}
		return nil, err
	}

	// A dangling pointer is a data-integrity problem, not a steady state.
	program, err := s.programs.GetVersion(ctx, pointer.ProgramID, pointer.ProgramVersion)
	if err != nil {
		return nil, err
	}

	today := startOfDay(s.now().UTC())
	deleted, err := s.calendar.DeleteFutureProjected(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	daysPerWeek := program.WeeklyTemplate.DaysPerWeek
	if daysPerWeek < 1 {
		daysPerWeek = 1
	} else if daysPerWeek > 7 {
		daysPerWeek = 7
	}
	// Fixed-interval fallback. For day counts that don't divide 7 this
	// under-schedules relative to intent; known approximation, kept as is.
	interval := 7 / daysPerWeek
	preferred := program.WeeklyTemplate.PreferredDays

	result := &ProjectionResult{
		Deleted:        deleted,
		ProgramID:      program.ProgramID,
		ProgramVersion: program.Version,
	}

	sessionIdx := 0
	for offset := 0; offset < projectionHorizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		if len(preferred) > 0 {
			if !matchesPreferredDay(day.Weekday(), preferred) {
				continue
			}
		} else if offset%interval != 0 {
			continue
		}

		template := sessionTemplateAt(program, sessionIdx)
		sessionIdx++

		if err := s.createProjectedEvent(ctx, userID, program, day, template); err != nil {
			return nil, err
		}
		result.Created++
	}
	return result, nil
}

// createProjectedEvent inserts one scheduled event plus the planned session
// it owns, then links the two.
func (s *calendarService) createProjectedEvent(ctx context.Context, userID primitive.ObjectID, program *domain.Program, day time.Time, template domain.SessionTemplate) error {
	duration := template.DurationMin
	if duration <= 0 {
		duration = defaultSessionDuration
	}
	startAt := day.Add(defaultEventStartHour * time.Hour)

	event := &domain.CalendarEvent{
		UserID:         userID,
		Title:          template.Focus,
		EventType:      "workout",
		StartAt:        startAt,
		EndAt:          startAt.Add(time.Duration(duration) * time.Minute),
		Status:         domain.EventScheduled,
		Source:         domain.SourceProgramProjection,
		UserModified:   false,
		ProgramID:      &program.ProgramID,
		ProgramVersion: program.Version,
	}
	eventID, err := s.calendar.InsertEvent(ctx, event)
	if err != nil {
		return err
	}

	planned := &domain.PlannedSession{
		EventID:      eventID,
		Focus:        template.Focus,
		DurationMin:  duration,
		Equipment:    template.Equipment,
		Notes:        template.Notes,
		TimeVariants: program.Progression.TimeScaling,
	}
	plannedID, err := s.calendar.InsertPlannedSession(ctx, planned)
	if err != nil {
		return err
	}
	return s.calendar.SetEventPlannedSession(ctx, eventID, plannedID)
}

// ListEvents returns the user's events with startAt in [from, to).
func (s *calendarService) ListEvents(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error) {
	return s.calendar.ListEventsInRange(ctx, userID, from, to)
}

// UpdateEvent applies a user edit and flags the event userModified so future
// projections leave it alone.
func (s *calendarService) UpdateEvent(ctx context.Context, userID, eventID primitive.ObjectID, update EventUpdate) (*domain.CalendarEvent, error) {
	event, err := s.calendar.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.UserID != userID {
		return nil, ErrEventNotFound
	}

	if update.Title != nil {
		event.Title = *update.Title
	}
	if update.Status != nil {
		event.Status = *update.Status
	}
	if update.StartAt != nil {
		event.StartAt = *update.StartAt
	}
	if update.EndAt != nil {
		event.EndAt = *update.EndAt
	}
	event.UserModified = true

	if err := s.calendar.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// CreateUserEvent inserts a user-created workout slot. User-created events
// are outside the projector's replaceable set regardless of the
// userModified flag.
func (s *calendarService) CreateUserEvent(ctx context.Context, userID primitive.ObjectID, title string, startAt, endAt time.Time) (*domain.CalendarEvent, error) {
	if title == "" {
		title = "Workout"
	}
	if endAt.Before(startAt) || endAt.Equal(startAt) {
		endAt = startAt.Add(defaultSessionDuration * time.Minute)
	}

	event := &domain.CalendarEvent{
		UserID:    userID,
		Title:     title,
		EventType: "workout",
		StartAt:   startAt,
		EndAt:     endAt,
		Status:    domain.EventScheduled,
		Source:    domain.SourceUserCreated,
	}
	id, err := s.calendar.InsertEvent(ctx, event)
	if err != nil {
		return nil, err
	}
	event.ID = id
	return event, nil
}

// sessionTemplateAt cycles through the program's session list by index modulo
// its length, so a short template list repeats across the horizon. Programs
// without any session templates fall back to a generic one.
func sessionTemplateAt(program *domain.Program, idx int) domain.SessionTemplate {
	if len(program.Sessions) == 0 {
		return domain.SessionTemplate{Focus: "Training Session", DurationMin: defaultSessionDuration}
	}
	return program.Sessions[idx%len(program.Sessions)]
}

// matchesPreferredDay reports whether the weekday matches any of the listed
// names. Matching is case-insensitive and accepts both full names and
// three-letter prefixes ("mon", "monday").
func matchesPreferredDay(weekday time.Weekday, preferred []string) bool {
	full := strings.ToLower(weekday.String())
	for _, name := range preferred {
		name = strings.ToLower(strings.TrimSpace(name))
		if len(name) < 3 {
			continue
		}
		if strings.HasPrefix(full, name) {
			return true
		}
	}
	return false
}

// startOfDay truncates to midnight in the time's location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
