package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const rewrittenMarkdown = `# Coach Notes
Strong week, adding a fourth session.

# Milestones
- First unbroken 60s plank

# Current Phase
Foundation, week 2.

# Available Phases
Foundation, Build, Peak.`

type reviewFixture struct {
	svc       *reviewService
	programs  *fakeProgramRepo
	calendar  *fakeCalendarRepo
	baselines *fakeBaselineRepo
	reports   *fakeReportRepo
	completer *fakeCompleter
}

func newReviewFixture(completer *fakeCompleter) *reviewFixture {
	programs := newFakeProgramRepo()
	calendar := &fakeCalendarRepo{}
	baselines := &fakeBaselineRepo{}
	reports := newFakeReportRepo()
	calendarSvc := newTestCalendarService(programs, calendar)

	svc := NewReviewService(programs, calendar, baselines, reports, calendarSvc, completer, nil).(*reviewService)
	svc.now = func() time.Time { return projectionNow }

	return &reviewFixture{
		svc:       svc,
		programs:  programs,
		calendar:  calendar,
		baselines: baselines,
		reports:   reports,
		completer: completer,
	}
}

// weekStart is the Monday preceding projectionNow (a Wednesday).
var weekStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func (f *reviewFixture) addCompletedSession(userID primitive.ObjectID, title string, day time.Time, minutes int) {
	f.calendar.InsertEvent(context.Background(), &domain.CalendarEvent{
		UserID:  userID,
		Title:   title,
		StartAt: day,
		EndAt:   day.Add(time.Duration(minutes) * time.Minute),
		Status:  domain.EventCompleted,
		Source:  domain.SourceProgramProjection,
	})
}

func TestRunWeeklyReviewSkipsWithoutSessions(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{response: rewrittenMarkdown})
	userID := primitive.NewObjectID()
	seedActiveProgram(f.programs, userID, domain.WeeklyTemplate{DaysPerWeek: 3}, nil)

	result, err := f.svc.RunWeeklyReview(context.Background(), userID)
	if err != nil {
		t.Fatalf("RunWeeklyReview failed: %v", err)
	}
	if !result.Skipped || result.Reason != SkipNoSessions {
		t.Fatalf("expected skip %q, got %+v", SkipNoSessions, result)
	}
	if len(f.completer.requests) != 0 {
		t.Fatalf("no model call expected on skip")
	}
}

func TestRunWeeklyReviewSkipsWithoutActiveProgram(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{response: rewrittenMarkdown})
	userID := primitive.NewObjectID()
	f.addCompletedSession(userID, "Full Body", weekStart.Add(33*time.Hour), 45)

	result, err := f.svc.RunWeeklyReview(context.Background(), userID)
	if err != nil {
		t.Fatalf("RunWeeklyReview failed: %v", err)
	}
	if !result.Skipped || result.Reason != SkipNoActiveProgram {
		t.Fatalf("expected skip %q, got %+v", SkipNoActiveProgram, result)
	}
}

func TestRunWeeklyReviewRewritesAndRepoints(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{response: "```markdown\n" + rewrittenMarkdown + "\n```"})
	userID := primitive.NewObjectID()
	program := seedActiveProgram(f.programs, userID, domain.WeeklyTemplate{DaysPerWeek: 3}, nil)
	f.addCompletedSession(userID, "Full Body", weekStart.Add(33*time.Hour), 45)
	f.addCompletedSession(userID, "Conditioning", weekStart.Add(57*time.Hour), 30)

	result, err := f.svc.RunWeeklyReview(context.Background(), userID)
	if err != nil {
		t.Fatalf("RunWeeklyReview failed: %v", err)
	}
	if result.Skipped {
		t.Fatalf("unexpected skip: %+v", result)
	}
	if result.NewVersion != 2 {
		t.Fatalf("expected new version 2, got %d", result.NewVersion)
	}

	// Pointer repointed to the rewrite.
	pointer, err := f.programs.GetActivePointer(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetActivePointer failed: %v", err)
	}
	if pointer.ProgramID != program.ProgramID || pointer.ProgramVersion != 2 {
		t.Fatalf("expected pointer at v2, got %+v", pointer)
	}

	// Code fence stripped, structure preserved.
	next, err := f.programs.GetVersion(context.Background(), program.ProgramID, 2)
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if !strings.HasPrefix(next.Markdown, "# Coach Notes") {
		t.Fatalf("expected fence-stripped markdown, got %q", next.Markdown[:40])
	}

	// Previous version untouched.
	prev, err := f.programs.GetVersion(context.Background(), program.ProgramID, 1)
	if err != nil {
		t.Fatalf("version 1 must remain readable: %v", err)
	}
	if prev.Markdown != program.Markdown {
		t.Fatalf("version 1 was mutated")
	}

	// Audit trail and report side product.
	var sawReview bool
	for _, logged := range f.programs.logged {
		if logged.EventType == domain.ProgramEventWeeklyReview && logged.Version == 2 {
			sawReview = true
		}
	}
	if !sawReview {
		t.Fatalf("expected a weekly_review program event, got %+v", f.programs.logged)
	}
	report, err := f.reports.GetByUserAndWeek(context.Background(), userID, weekStart)
	if err != nil {
		t.Fatalf("expected a weekly report persisted: %v", err)
	}
	if report.Stats.CompletedSessions != 2 || report.Stats.TotalMinutes != 75 {
		t.Fatalf("unexpected report stats: %+v", report.Stats)
	}

	// Calendar reprojected from the new version.
	if result.Projection == nil || result.Projection.ProgramVersion != 2 {
		t.Fatalf("expected reprojection from v2, got %+v", result.Projection)
	}

	// The prompt carried the program and the week's data.
	prompt := f.completer.requests[0].User
	for _, want := range []string{"Foundation block", "Full Body", "Conditioning"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to mention %q", want)
		}
	}
}

func TestRunWeeklyReviewRejectsMalformedRewrite(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{response: "Sorry, I cannot rewrite this program."})
	userID := primitive.NewObjectID()
	seedActiveProgram(f.programs, userID, domain.WeeklyTemplate{DaysPerWeek: 3}, nil)
	f.addCompletedSession(userID, "Full Body", weekStart.Add(33*time.Hour), 45)

	_, err := f.svc.RunWeeklyReview(context.Background(), userID)
	if !errors.Is(err, ErrProgramRewrite) {
		t.Fatalf("expected ErrProgramRewrite, got %v", err)
	}

	// A rejected rewrite must not repoint the user.
	pointer, err := f.programs.GetActivePointer(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetActivePointer failed: %v", err)
	}
	if pointer.ProgramVersion != 1 {
		t.Fatalf("expected pointer to stay at v1, got v%d", pointer.ProgramVersion)
	}
}

func TestCheckAndRunCatchUpReviewSkipsWhenScheduled(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{})
	userID := primitive.NewObjectID()
	seedActiveProgram(f.programs, userID, domain.WeeklyTemplate{DaysPerWeek: 3}, nil)
	f.calendar.InsertEvent(context.Background(), &domain.CalendarEvent{
		UserID:  userID,
		Title:   "Tomorrow's workout",
		StartAt: projectionNow.Add(24 * time.Hour),
		Status:  domain.EventScheduled,
		Source:  domain.SourceProgramProjection,
	})

	result, err := f.svc.CheckAndRunCatchUpReview(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckAndRunCatchUpReview failed: %v", err)
	}
	if result.Skipped != SkipScheduleCurrent {
		t.Fatalf("expected skip %q, got %+v", SkipScheduleCurrent, result)
	}
	if result.Created != 0 {
		t.Fatalf("skip must not project, created %d", result.Created)
	}
}

func TestCheckAndRunCatchUpReviewReprojectsWhenDry(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{})
	userID := primitive.NewObjectID()
	seedActiveProgram(f.programs, userID, domain.WeeklyTemplate{DaysPerWeek: 3}, nil)

	result, err := f.svc.CheckAndRunCatchUpReview(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckAndRunCatchUpReview failed: %v", err)
	}
	if result.Skipped != "" || result.Created == 0 {
		t.Fatalf("expected a fresh projection, got %+v", result)
	}

	var sawCatchUp bool
	for _, logged := range f.programs.logged {
		if logged.EventType == domain.ProgramEventCatchUpProjection {
			sawCatchUp = true
		}
	}
	if !sawCatchUp {
		t.Fatalf("expected a catch_up_projection program event")
	}
}

func TestGenerateWeeklyReport(t *testing.T) {
	f := newReviewFixture(&fakeCompleter{})
	userID := primitive.NewObjectID()
	f.addCompletedSession(userID, "Full Body", weekStart.Add(33*time.Hour), 45)
	f.calendar.InsertEvent(context.Background(), &domain.CalendarEvent{
		UserID:  userID,
		Title:   "Skipped run",
		StartAt: weekStart.Add(80 * time.Hour),
		EndAt:   weekStart.Add(81 * time.Hour),
		Status:  domain.EventSkipped,
		Source:  domain.SourceProgramProjection,
	})

	report, err := f.svc.GenerateWeeklyReport(context.Background(), userID)
	if err != nil {
		t.Fatalf("GenerateWeeklyReport failed: %v", err)
	}
	if !report.WeekStart.Equal(weekStart) {
		t.Fatalf("expected week start %v, got %v", weekStart, report.WeekStart)
	}
	if report.Stats.CompletedSessions != 1 || report.Stats.SkippedSessions != 1 {
		t.Fatalf("unexpected stats: %+v", report.Stats)
	}
	if len(report.Highlights) == 0 {
		t.Fatalf("expected highlights in the report")
	}
}

func TestParseRewrittenProgram(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain", raw: rewrittenMarkdown, want: rewrittenMarkdown},
		{name: "fenced", raw: "```\n" + rewrittenMarkdown + "\n```", want: rewrittenMarkdown},
		{name: "tagged fence", raw: "```markdown\n" + rewrittenMarkdown + "\n```", want: rewrittenMarkdown},
		{name: "surrounding whitespace", raw: "\n\n" + rewrittenMarkdown + "\n", want: rewrittenMarkdown},
		{name: "empty", raw: "", wantErr: true},
		{name: "fence only", raw: "```\n```", wantErr: true},
		{name: "no heading", raw: "Just some prose about training.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRewrittenProgram(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrProgramRewrite) {
					t.Fatalf("expected ErrProgramRewrite, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRewrittenProgram failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected markdown:\n%s", got)
			}
		})
	}
}

func TestStartOfWeekIsMonday(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},  // Monday maps to itself
		{time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)}, // Wednesday
		{time.Date(2025, 3, 9, 1, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},   // Sunday belongs to the preceding Monday
	}
	for _, tt := range tests {
		if got := startOfWeek(tt.in); !got.Equal(tt.want) {
			t.Fatalf("startOfWeek(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComputeWeeklyStats(t *testing.T) {
	base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	events := []domain.CalendarEvent{
		{Title: "Push", Status: domain.EventCompleted, StartAt: base, EndAt: base.Add(45 * time.Minute)},
		{Title: "Push", Status: domain.EventCompleted, StartAt: base.AddDate(0, 0, 2), EndAt: base.AddDate(0, 0, 2).Add(30 * time.Minute)},
		{Title: "Pull", Status: domain.EventScheduled, StartAt: base.AddDate(0, 0, 4), EndAt: base.AddDate(0, 0, 4).Add(45 * time.Minute)},
		{Title: "Run", Status: domain.EventSkipped, StartAt: base.AddDate(0, 0, 5), EndAt: base.AddDate(0, 0, 5).Add(30 * time.Minute)},
	}

	stats := computeWeeklyStats(events)
	if stats.CompletedSessions != 2 || stats.PlannedSessions != 1 || stats.SkippedSessions != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.TotalMinutes != 75 {
		t.Fatalf("expected 75 completed minutes, got %d", stats.TotalMinutes)
	}
	if stats.FocusBreakdown["Push"] != 2 {
		t.Fatalf("expected 2 Push completions, got %d", stats.FocusBreakdown["Push"])
	}
}
