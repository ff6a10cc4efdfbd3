package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/llm"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes shared by the service tests. They mimic the
// contracts the Mongo implementations provide, including ErrNotFound and the
// (sessionId, sequenceNumber) uniqueness constraint on the event log.

// --- EventRepository ---

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.AssessmentEvent

	// forcedInsertErrs is drained one error per Insert call before the
	// uniqueness check runs. A nil entry means "no forced error".
	forcedInsertErrs []error
	maxSequenceErr   error
}

func (f *fakeEventRepo) Insert(ctx context.Context, event *domain.AssessmentEvent) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.forcedInsertErrs) > 0 {
		err := f.forcedInsertErrs[0]
		f.forcedInsertErrs = f.forcedInsertErrs[1:]
		if err != nil {
			return primitive.NilObjectID, err
		}
	}
	for _, existing := range f.events {
		if existing.SessionID == event.SessionID && existing.SequenceNumber == event.SequenceNumber {
			return primitive.NilObjectID, repository.ErrDuplicateKey
		}
	}
	stored := *event
	stored.ID = primitive.NewObjectID()
	f.events = append(f.events, stored)
	return stored.ID, nil
}

func (f *fakeEventRepo) MaxSequence(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxSequenceErr != nil {
		return 0, f.maxSequenceErr
	}
	var max int64
	for _, event := range f.events {
		if event.SessionID == sessionID && event.SequenceNumber > max {
			max = event.SequenceNumber
		}
	}
	return max, nil
}

func (f *fakeEventRepo) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.AssessmentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.AssessmentEvent
	for _, event := range f.events {
		if event.SessionID == sessionID {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

// --- SessionRepository ---

type fakeSessionRepo struct {
	sessions map[primitive.ObjectID]*domain.AssessmentSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[primitive.ObjectID]*domain.AssessmentSession{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *domain.AssessmentSession) (primitive.ObjectID, error) {
	id := primitive.NewObjectID()
	stored := *session
	stored.ID = id
	f.sessions[id] = &stored
	return id, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.AssessmentSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepo) GetInProgressByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.AssessmentSession, error) {
	for _, session := range f.sessions {
		if session.UserID == userID && session.Status == domain.SessionInProgress {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionRepo) UpdateCurrentStep(ctx context.Context, sessionID primitive.ObjectID, stepID string) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.CurrentStepID = stepID
	return nil
}

func (f *fakeSessionRepo) MarkCompleted(ctx context.Context, sessionID primitive.ObjectID) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Status = domain.SessionCompleted
	return nil
}

// --- StepResultRepository ---

type fakeStepResultRepo struct {
	results []domain.StepResult
}

func (f *fakeStepResultRepo) Upsert(ctx context.Context, result *domain.StepResult) error {
	for i, existing := range f.results {
		if existing.SessionID == result.SessionID && existing.StepID == result.StepID {
			f.results[i] = *result
			return nil
		}
	}
	f.results = append(f.results, *result)
	return nil
}

func (f *fakeStepResultRepo) ListBySession(ctx context.Context, sessionID primitive.ObjectID) ([]domain.StepResult, error) {
	var out []domain.StepResult
	for _, result := range f.results {
		if result.SessionID == sessionID {
			out = append(out, result)
		}
	}
	return out, nil
}

// --- BaselineRepository ---

type fakeBaselineRepo struct {
	baselines []domain.Baseline
}

func (f *fakeBaselineRepo) Create(ctx context.Context, baseline *domain.Baseline) (primitive.ObjectID, error) {
	stored := *baseline
	stored.ID = primitive.NewObjectID()
	f.baselines = append(f.baselines, stored)
	return stored.ID, nil
}

func (f *fakeBaselineRepo) LatestBySession(ctx context.Context, sessionID primitive.ObjectID) (*domain.Baseline, error) {
	var latest *domain.Baseline
	for i := range f.baselines {
		b := &f.baselines[i]
		if b.SessionID != sessionID {
			continue
		}
		if latest == nil || b.Version > latest.Version {
			latest = b
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeBaselineRepo) LatestByUser(ctx context.Context, userID primitive.ObjectID) (*domain.Baseline, error) {
	var latest *domain.Baseline
	for i := range f.baselines {
		b := &f.baselines[i]
		if b.UserID != userID {
			continue
		}
		if latest == nil || b.Version > latest.Version {
			latest = b
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

// --- ProgramRepository ---

type programVersionKey struct {
	programID primitive.ObjectID
	version   int
}

type fakeProgramRepo struct {
	versions map[programVersionKey]*domain.Program
	pointers map[primitive.ObjectID]*domain.ActiveProgramPointer
	logged   []domain.ProgramEvent
}

func newFakeProgramRepo() *fakeProgramRepo {
	return &fakeProgramRepo{
		versions: map[programVersionKey]*domain.Program{},
		pointers: map[primitive.ObjectID]*domain.ActiveProgramPointer{},
	}
}

func (f *fakeProgramRepo) CreateVersion(ctx context.Context, program *domain.Program) (primitive.ObjectID, error) {
	key := programVersionKey{program.ProgramID, program.Version}
	if _, exists := f.versions[key]; exists {
		return primitive.NilObjectID, repository.ErrDuplicateKey
	}
	stored := *program
	stored.ID = primitive.NewObjectID()
	f.versions[key] = &stored
	return stored.ID, nil
}

func (f *fakeProgramRepo) GetVersion(ctx context.Context, programID primitive.ObjectID, version int) (*domain.Program, error) {
	program, ok := f.versions[programVersionKey{programID, version}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *program
	return &copied, nil
}

func (f *fakeProgramRepo) LatestVersion(ctx context.Context, programID primitive.ObjectID) (*domain.Program, error) {
	var latest *domain.Program
	for key, program := range f.versions {
		if key.programID != programID {
			continue
		}
		if latest == nil || program.Version > latest.Version {
			latest = program
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeProgramRepo) GetActivePointer(ctx context.Context, userID primitive.ObjectID) (*domain.ActiveProgramPointer, error) {
	pointer, ok := f.pointers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *pointer
	return &copied, nil
}

func (f *fakeProgramRepo) SetActivePointer(ctx context.Context, userID, programID primitive.ObjectID, version int) error {
	f.pointers[userID] = &domain.ActiveProgramPointer{
		UserID:         userID,
		ProgramID:      programID,
		ProgramVersion: version,
		UpdatedAt:      time.Now().UTC(),
	}
	return nil
}

func (f *fakeProgramRepo) LogEvent(ctx context.Context, event *domain.ProgramEvent) error {
	f.logged = append(f.logged, *event)
	return nil
}

// --- CalendarRepository ---

type fakeCalendarRepo struct {
	events  []domain.CalendarEvent
	planned []domain.PlannedSession
}

func (f *fakeCalendarRepo) InsertEvent(ctx context.Context, event *domain.CalendarEvent) (primitive.ObjectID, error) {
	stored := *event
	stored.ID = primitive.NewObjectID()
	f.events = append(f.events, stored)
	return stored.ID, nil
}

func (f *fakeCalendarRepo) GetEventByID(ctx context.Context, id primitive.ObjectID) (*domain.CalendarEvent, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			copied := f.events[i]
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCalendarRepo) UpdateEvent(ctx context.Context, event *domain.CalendarEvent) error {
	for i := range f.events {
		if f.events[i].ID == event.ID {
			f.events[i] = *event
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeCalendarRepo) ListEventsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error) {
	var out []domain.CalendarEvent
	for _, event := range f.events {
		if event.UserID == userID && !event.StartAt.Before(from) && event.StartAt.Before(to) {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeCalendarRepo) ListCompletedInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.CalendarEvent, error) {
	all, _ := f.ListEventsInRange(ctx, userID, from, to)
	var out []domain.CalendarEvent
	for _, event := range all {
		if event.Status == domain.EventCompleted {
			out = append(out, event)
		}
	}
	return out, nil
}

func (f *fakeCalendarRepo) DeleteFutureProjected(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error) {
	var kept []domain.CalendarEvent
	var deleted int64
	deletedIDs := map[primitive.ObjectID]bool{}
	for _, event := range f.events {
		if event.UserID == userID &&
			event.Source == domain.SourceProgramProjection &&
			!event.UserModified &&
			!event.StartAt.Before(from) {
			deleted++
			deletedIDs[event.ID] = true
			continue
		}
		kept = append(kept, event)
	}
	f.events = kept

	// Deleted events take their owned planned sessions with them, matching
	// the Mongo implementation.
	var keptPlanned []domain.PlannedSession
	for _, session := range f.planned {
		if deletedIDs[session.EventID] {
			continue
		}
		keptPlanned = append(keptPlanned, session)
	}
	f.planned = keptPlanned
	return deleted, nil
}

func (f *fakeCalendarRepo) CountUpcomingScheduled(ctx context.Context, userID primitive.ObjectID, from time.Time) (int64, error) {
	var count int64
	for _, event := range f.events {
		if event.UserID == userID && event.Status == domain.EventScheduled && !event.StartAt.Before(from) {
			count++
		}
	}
	return count, nil
}

func (f *fakeCalendarRepo) InsertPlannedSession(ctx context.Context, session *domain.PlannedSession) (primitive.ObjectID, error) {
	stored := *session
	stored.ID = primitive.NewObjectID()
	f.planned = append(f.planned, stored)
	return stored.ID, nil
}

func (f *fakeCalendarRepo) GetPlannedSession(ctx context.Context, id primitive.ObjectID) (*domain.PlannedSession, error) {
	for i := range f.planned {
		if f.planned[i].ID == id {
			copied := f.planned[i]
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeCalendarRepo) SetEventPlannedSession(ctx context.Context, eventID, plannedSessionID primitive.ObjectID) error {
	for i := range f.events {
		if f.events[i].ID == eventID {
			f.events[i].PlannedSessionID = &plannedSessionID
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- ReportRepository ---

type reportKey struct {
	userID    primitive.ObjectID
	weekStart time.Time
}

type fakeReportRepo struct {
	reports map[reportKey]*domain.WeeklyReport
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[reportKey]*domain.WeeklyReport{}}
}

func (f *fakeReportRepo) Upsert(ctx context.Context, report *domain.WeeklyReport) error {
	copied := *report
	f.reports[reportKey{report.UserID, report.WeekStart}] = &copied
	return nil
}

func (f *fakeReportRepo) GetByUserAndWeek(ctx context.Context, userID primitive.ObjectID, weekStart time.Time) (*domain.WeeklyReport, error) {
	report, ok := f.reports[reportKey{userID, weekStart}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *report
	return &copied, nil
}

// --- Completer ---

type fakeCompleter struct {
	response string
	err      error
	requests []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}
