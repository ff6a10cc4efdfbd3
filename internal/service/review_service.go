package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/llm"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"
	"github.com/YisroelArnson/ai-personal-trainer/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// --- Error Definitions ---
var (
	ErrProgramRewrite = errors.New("program rewrite response failed validation")
)

// Skip reason for reviews with nothing to review.
const SkipNoSessions = "no_sessions"

const rewriteSystemPrompt = `You are an experienced strength and conditioning coach. You will receive a user's current training program as a markdown document, together with their completed sessions, weekly stats and assessment baseline for the past week. Rewrite the program markdown to incorporate this data. You must preserve the document's top-level section structure exactly, including the headings "# Coach Notes", "# Milestones", "# Current Phase" and "# Available Phases". Respond with the complete rewritten markdown document and nothing else.`

const rewriteMaxTokens = 4096

// ReviewResult reports one weekly review run. Skipped=true with a reason is
// the expected steady state for users with nothing to review; batch callers
// iterate all users and must be able to tell a no-op from a failure.
type ReviewResult struct {
	Skipped    bool               `json:"skipped"`
	Reason     string             `json:"reason,omitempty"`
	ProgramID  primitive.ObjectID `json:"programId,omitempty"`
	NewVersion int                `json:"newVersion,omitempty"`
	Projection *ProjectionResult  `json:"projection,omitempty"`
}

// ReviewService runs the weekly "AI rewrites your program" loop and the
// weekly report job.
type ReviewService interface {
	RunWeeklyReview(ctx context.Context, userID primitive.ObjectID) (*ReviewResult, error)
	CheckAndRunCatchUpReview(ctx context.Context, userID primitive.ObjectID) (*ProjectionResult, error)
	GenerateWeeklyReport(ctx context.Context, userID primitive.ObjectID) (*domain.WeeklyReport, error)
}

// reviewService implements the ReviewService interface.
type reviewService struct {
	programs    repository.ProgramRepository
	calendar    repository.CalendarRepository
	baselines   repository.BaselineRepository
	reports     repository.ReportRepository
	calendarSvc CalendarService
	completer   llm.Completer
	archive     storage.ProgramArchive // nil when archiving is disabled
	now         func() time.Time
}

// NewReviewService creates a new instance of reviewService.
func NewReviewService(
	programs repository.ProgramRepository,
	calendar repository.CalendarRepository,
	baselines repository.BaselineRepository,
	reports repository.ReportRepository,
	calendarSvc CalendarService,
	completer llm.Completer,
	archive storage.ProgramArchive,
) ReviewService {
	return &reviewService{
		programs:    programs,
		calendar:    calendar,
		baselines:   baselines,
		reports:     reports,
		calendarSvc: calendarSvc,
		completer:   completer,
		archive:     archive,
		now:         time.Now,
	}
}

// RunWeeklyReview gathers the week's data, has the model rewrite the active
// program, versions the rewrite, repoints the active pointer and re-projects
// the calendar. The four initial reads have no ordering dependency and run
// concurrently; everything after is strictly sequential because each step
// consumes the previous one's output.
func (s *reviewService) RunWeeklyReview(ctx context.Context, userID primitive.ObjectID) (*ReviewResult, error) {
	weekStart := startOfWeek(s.now().UTC())
	weekEnd := weekStart.AddDate(0, 0, 7)

	var (
		completed  []domain.CalendarEvent
		weekEvents []domain.CalendarEvent
		program    *domain.Program
		baseline   *domain.Baseline
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		completed, err = s.calendar.ListCompletedInRange(gctx, userID, weekStart, weekEnd)
		return err
	})
	g.Go(func() error {
		var err error
		weekEvents, err = s.calendar.ListEventsInRange(gctx, userID, weekStart, weekEnd)
		return err
	})
	g.Go(func() error {
		var err error
		program, err = s.activeProgram(gctx, userID)
		return err
	})
	g.Go(func() error {
		b, err := s.baselines.LatestByUser(gctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil // no baseline yet is fine
			}
			return err
		}
		baseline = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(completed) == 0 {
		return &ReviewResult{Skipped: true, Reason: SkipNoSessions}, nil
	}
	if program == nil {
		return &ReviewResult{Skipped: true, Reason: SkipNoActiveProgram}, nil
	}

	stats := computeWeeklyStats(weekEvents)

	raw, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:    rewriteSystemPrompt,
		User:      buildRewritePrompt(program, completed, stats, baseline),
		MaxTokens: rewriteMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	markdown, err := parseRewrittenProgram(raw)
	if err != nil {
		return nil, err
	}

	next := &domain.Program{
		ProgramID:      program.ProgramID,
		UserID:         userID,
		Version:        program.Version + 1,
		Markdown:       markdown,
		WeeklyTemplate: program.WeeklyTemplate,
		Sessions:       program.Sessions,
		Progression:    program.Progression,
	}
	next.ArchiveKey = archiveProgramVersion(ctx, s.archive, next)

	if _, err := s.programs.CreateVersion(ctx, next); err != nil {
		return nil, err
	}
	if err := s.programs.SetActivePointer(ctx, userID, next.ProgramID, next.Version); err != nil {
		return nil, err
	}
	if err := s.programs.LogEvent(ctx, &domain.ProgramEvent{
		UserID:    userID,
		ProgramID: next.ProgramID,
		Version:   next.Version,
		EventType: domain.ProgramEventWeeklyReview,
		Notes:     fmt.Sprintf("rewrite from %d completed sessions", len(completed)),
	}); err != nil {
		return nil, err
	}

	// The report is a side product of the review; failing to persist it
	// should not fail the review itself.
	if err := s.persistWeeklyReport(ctx, userID, weekStart, stats); err != nil {
		log.Printf("WARN: Failed to persist weekly report for user %s: %v", userID.Hex(), err)
	}

	projection, err := s.calendarSvc.SyncCalendarFromProgram(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ReviewResult{
		ProgramID:  next.ProgramID,
		NewVersion: next.Version,
		Projection: projection,
	}, nil
}

// CheckAndRunCatchUpReview is the drift safety net: when a user has no
// upcoming scheduled workout at all, re-project their current program version
// unchanged.
func (s *reviewService) CheckAndRunCatchUpReview(ctx context.Context, userID primitive.ObjectID) (*ProjectionResult, error) {
	upcoming, err := s.calendar.CountUpcomingScheduled(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if upcoming > 0 {
		return &ProjectionResult{Skipped: SkipScheduleCurrent}, nil
	}

	projection, err := s.calendarSvc.SyncCalendarFromProgram(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projection.Skipped == "" {
		if err := s.programs.LogEvent(ctx, &domain.ProgramEvent{
			UserID:    userID,
			ProgramID: projection.ProgramID,
			Version:   projection.ProgramVersion,
			EventType: domain.ProgramEventCatchUpProjection,
		}); err != nil {
			return nil, err
		}
	}
	return projection, nil
}

// GenerateWeeklyReport computes and persists the current week's snapshot.
func (s *reviewService) GenerateWeeklyReport(ctx context.Context, userID primitive.ObjectID) (*domain.WeeklyReport, error) {
	weekStart := startOfWeek(s.now().UTC())
	weekEnd := weekStart.AddDate(0, 0, 7)

	events, err := s.calendar.ListEventsInRange(ctx, userID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	stats := computeWeeklyStats(events)

	if err := s.persistWeeklyReport(ctx, userID, weekStart, stats); err != nil {
		return nil, err
	}
	return s.reports.GetByUserAndWeek(ctx, userID, weekStart)
}

func (s *reviewService) persistWeeklyReport(ctx context.Context, userID primitive.ObjectID, weekStart time.Time, stats domain.WeeklyStats) error {
	return s.reports.Upsert(ctx, &domain.WeeklyReport{
		UserID:     userID,
		WeekStart:  weekStart,
		Stats:      stats,
		Highlights: reportHighlights(stats),
	})
}

// activeProgram resolves the pointer, treating "no pointer" as nil rather
// than an error so the orchestrator can emit a structured skip.
func (s *reviewService) activeProgram(ctx context.Context, userID primitive.ObjectID) (*domain.Program, error) {
	pointer, err := s.programs.GetActivePointer(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.programs.GetVersion(ctx, pointer.ProgramID, pointer.ProgramVersion)
}

// computeWeeklyStats folds a week of calendar events into counts.
func computeWeeklyStats(events []domain.CalendarEvent) domain.WeeklyStats {
	stats := domain.WeeklyStats{FocusBreakdown: map[string]int{}}
	for _, event := range events {
		switch event.Status {
		case domain.EventCompleted:
			stats.CompletedSessions++
			stats.TotalMinutes += int(event.EndAt.Sub(event.StartAt).Minutes())
			if event.Title != "" {
				stats.FocusBreakdown[event.Title]++
			}
		case domain.EventScheduled:
			stats.PlannedSessions++
		case domain.EventSkipped:
			stats.SkippedSessions++
		}
	}
	return stats
}

func reportHighlights(stats domain.WeeklyStats) []string {
	total := stats.CompletedSessions + stats.PlannedSessions + stats.SkippedSessions
	highlights := []string{
		fmt.Sprintf("Completed %d of %d sessions this week.", stats.CompletedSessions, total),
	}
	if stats.TotalMinutes > 0 {
		highlights = append(highlights, fmt.Sprintf("Trained for %d minutes in total.", stats.TotalMinutes))
	}
	if stats.SkippedSessions > 0 {
		highlights = append(highlights, fmt.Sprintf("Skipped %d sessions.", stats.SkippedSessions))
	}
	return highlights
}

// buildRewritePrompt renders the week's data into the rewrite request.
func buildRewritePrompt(program *domain.Program, completed []domain.CalendarEvent, stats domain.WeeklyStats, baseline *domain.Baseline) string {
	var b strings.Builder

	b.WriteString("Current program markdown:\n\n")
	b.WriteString(program.Markdown)
	b.WriteString("\n\nCompleted sessions this week:\n")
	for _, event := range completed {
		fmt.Fprintf(&b, "- %s on %s (%d min)\n",
			event.Title, event.StartAt.Format("Monday 2006-01-02"),
			int(event.EndAt.Sub(event.StartAt).Minutes()))
	}

	statsJSON, err := json.Marshal(stats)
	if err == nil {
		b.WriteString("\nWeekly stats:\n")
		b.Write(statsJSON)
		b.WriteString("\n")
	}

	if baseline != nil {
		baselineJSON, err := json.Marshal(baseline.Data)
		if err == nil {
			b.WriteString("\nAssessment baseline:\n")
			b.Write(baselineJSON)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRewrite the program markdown now, preserving its top-level section structure.")
	return b.String()
}

// parseRewrittenProgram strips an enclosing code fence (optionally tagged,
// e.g. ```markdown) and validates that something resembling a program
// document came back: non-empty, with at least one top-level heading.
func parseRewrittenProgram(raw string) (string, error) {
	markdown := strings.TrimSpace(raw)
	if strings.HasPrefix(markdown, "```") {
		if idx := strings.Index(markdown, "\n"); idx >= 0 {
			markdown = markdown[idx+1:]
		}
		if idx := strings.LastIndex(markdown, "```"); idx >= 0 {
			markdown = markdown[:idx]
		}
		markdown = strings.TrimSpace(markdown)
	}

	if markdown == "" {
		return "", fmt.Errorf("%w: empty response", ErrProgramRewrite)
	}
	if !strings.HasPrefix(markdown, "# ") && !strings.Contains(markdown, "\n# ") {
		return "", fmt.Errorf("%w: no top-level heading in response", ErrProgramRewrite)
	}
	return markdown, nil
}

// startOfWeek truncates to the preceding (or current) Monday at midnight.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	// time.Weekday counts Sunday as 0; shift so Monday is the week start.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
