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

type fakeArchive struct {
	objects map[string]string
	putErr  error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string]string{}}
}

func (f *fakeArchive) PutMarkdown(ctx context.Context, key, markdown string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = markdown
	return nil
}

func (f *fakeArchive) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("no such object")
	}
	return "https://archive.example.com/" + key, nil
}

func (f *fakeArchive) DeleteObject(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newTestProgramService(archive *fakeArchive) (ProgramService, *fakeProgramRepo, *fakeCalendarRepo) {
	programs := newFakeProgramRepo()
	calendar := &fakeCalendarRepo{}
	calendarSvc := newTestCalendarService(programs, calendar)

	if archive == nil {
		// Typed nil would make the service think archiving is enabled.
		return NewProgramService(programs, calendarSvc, nil), programs, calendar
	}
	return NewProgramService(programs, calendarSvc, archive), programs, calendar
}

func TestCreateProgram(t *testing.T) {
	archive := newFakeArchive()
	svc, programs, calendar := newTestProgramService(archive)
	userID := primitive.NewObjectID()

	program, err := svc.CreateProgram(context.Background(), userID, ProgramInput{
		Markdown:       "# Current Phase\nFoundation block.",
		WeeklyTemplate: domain.WeeklyTemplate{DaysPerWeek: 3},
		Sessions:       []domain.SessionTemplate{{Focus: "Full Body", DurationMin: 45}},
	})
	if err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}
	if program.Version != 1 {
		t.Fatalf("expected version 1, got %d", program.Version)
	}

	pointer, err := programs.GetActivePointer(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected the active pointer to be set: %v", err)
	}
	if pointer.ProgramID != program.ProgramID || pointer.ProgramVersion != 1 {
		t.Fatalf("pointer mismatch: %+v", pointer)
	}

	if len(programs.logged) != 1 || programs.logged[0].EventType != domain.ProgramEventCreated {
		t.Fatalf("expected one created program event, got %+v", programs.logged)
	}
	if len(calendar.events) == 0 {
		t.Fatalf("expected the new program projected onto the calendar")
	}

	if program.ArchiveKey == "" {
		t.Fatalf("expected an archive key")
	}
	if !strings.HasPrefix(program.ArchiveKey, "programs/"+userID.Hex()+"/") {
		t.Fatalf("unexpected archive key layout: %q", program.ArchiveKey)
	}
	if archive.objects[program.ArchiveKey] != program.Markdown {
		t.Fatalf("archived markdown does not match")
	}
}

func TestCreateProgramEmptyMarkdown(t *testing.T) {
	svc, _, _ := newTestProgramService(nil)

	_, err := svc.CreateProgram(context.Background(), primitive.NewObjectID(), ProgramInput{})
	if !errors.Is(err, ErrEmptyProgram) {
		t.Fatalf("expected ErrEmptyProgram, got %v", err)
	}
}

func TestCreateProgramArchiveFailureIsBestEffort(t *testing.T) {
	archive := newFakeArchive()
	archive.putErr = errors.New("bucket unavailable")
	svc, _, _ := newTestProgramService(archive)

	program, err := svc.CreateProgram(context.Background(), primitive.NewObjectID(), ProgramInput{
		Markdown: "# Current Phase\nFoundation.",
	})
	if err != nil {
		t.Fatalf("archive failure must not fail program creation: %v", err)
	}
	if program.ArchiveKey != "" {
		t.Fatalf("expected no archive key on failure, got %q", program.ArchiveKey)
	}
}

func TestActiveProgramWithoutPointer(t *testing.T) {
	svc, _, _ := newTestProgramService(nil)

	_, err := svc.ActiveProgram(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, ErrNoActiveProgram) {
		t.Fatalf("expected ErrNoActiveProgram, got %v", err)
	}
}

func TestExportProgramURL(t *testing.T) {
	archive := newFakeArchive()
	svc, _, _ := newTestProgramService(archive)
	userID := primitive.NewObjectID()

	program, err := svc.CreateProgram(context.Background(), userID, ProgramInput{
		Markdown: "# Current Phase\nFoundation.",
	})
	if err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}

	url, err := svc.ExportProgramURL(context.Background(), userID)
	if err != nil {
		t.Fatalf("ExportProgramURL failed: %v", err)
	}
	if !strings.Contains(url, program.ArchiveKey) {
		t.Fatalf("expected a link to the archived snapshot, got %q", url)
	}
}

func TestExportProgramURLWithoutArchive(t *testing.T) {
	svc, _, _ := newTestProgramService(nil)
	userID := primitive.NewObjectID()

	if _, err := svc.CreateProgram(context.Background(), userID, ProgramInput{
		Markdown: "# Current Phase\nFoundation.",
	}); err != nil {
		t.Fatalf("CreateProgram failed: %v", err)
	}

	_, err := svc.ExportProgramURL(context.Background(), userID)
	if !errors.Is(err, ErrProgramNotArchived) {
		t.Fatalf("expected ErrProgramNotArchived, got %v", err)
	}
}
