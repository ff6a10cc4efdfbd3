package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"
	"github.com/YisroelArnson/ai-personal-trainer/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrNoActiveProgram    = errors.New("no active program")
	ErrProgramNotArchived = errors.New("program version has no archived snapshot")
	ErrEmptyProgram       = errors.New("program markdown cannot be empty")
)

// ProgramInput is the payload for creating a program's first version.
type ProgramInput struct {
	Markdown       string                   `json:"markdown"`
	WeeklyTemplate domain.WeeklyTemplate    `json:"weeklyTemplate"`
	Sessions       []domain.SessionTemplate `json:"sessions"`
	Progression    domain.Progression       `json:"progression"`
}

// ProgramService manages program versions and the active-program pointer.
type ProgramService interface {
	CreateProgram(ctx context.Context, userID primitive.ObjectID, input ProgramInput) (*domain.Program, error)
	ActiveProgram(ctx context.Context, userID primitive.ObjectID) (*domain.Program, error)
	ExportProgramURL(ctx context.Context, userID primitive.ObjectID) (string, error)
}

// programService implements the ProgramService interface.
type programService struct {
	programs    repository.ProgramRepository
	calendarSvc CalendarService
	archive     storage.ProgramArchive // nil when archiving is disabled
}

// NewProgramService creates a new instance of programService.
func NewProgramService(
	programs repository.ProgramRepository,
	calendarSvc CalendarService,
	archive storage.ProgramArchive,
) ProgramService {
	return &programService{
		programs:    programs,
		calendarSvc: calendarSvc,
		archive:     archive,
	}
}

// CreateProgram persists version 1 of a new program, points the user's active
// pointer at it, and projects it onto the calendar.
func (s *programService) CreateProgram(ctx context.Context, userID primitive.ObjectID, input ProgramInput) (*domain.Program, error) {
	if input.Markdown == "" {
		return nil, ErrEmptyProgram
	}

	program := &domain.Program{
		ProgramID:      primitive.NewObjectID(),
		UserID:         userID,
		Version:        1,
		Markdown:       input.Markdown,
		WeeklyTemplate: input.WeeklyTemplate,
		Sessions:       input.Sessions,
		Progression:    input.Progression,
	}
	program.ArchiveKey = archiveProgramVersion(ctx, s.archive, program)

	if _, err := s.programs.CreateVersion(ctx, program); err != nil {
		return nil, err
	}
	if err := s.programs.SetActivePointer(ctx, userID, program.ProgramID, program.Version); err != nil {
		return nil, err
	}
	if err := s.programs.LogEvent(ctx, &domain.ProgramEvent{
		UserID:    userID,
		ProgramID: program.ProgramID,
		Version:   program.Version,
		EventType: domain.ProgramEventCreated,
	}); err != nil {
		return nil, err
	}

	if _, err := s.calendarSvc.SyncCalendarFromProgram(ctx, userID); err != nil {
		return nil, err
	}
	return program, nil
}

// ActiveProgram resolves the user's active pointer to the program version it
// names. A missing pointer is the expected "not set up yet" state; a pointer
// to a missing version is a data-integrity error and propagates as such.
func (s *programService) ActiveProgram(ctx context.Context, userID primitive.ObjectID) (*domain.Program, error) {
	pointer, err := s.programs.GetActivePointer(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveProgram
		}
		return nil, err
	}
	return s.programs.GetVersion(ctx, pointer.ProgramID, pointer.ProgramVersion)
}

// ExportProgramURL returns a temporary download link for the active program
// version's archived markdown.
func (s *programService) ExportProgramURL(ctx context.Context, userID primitive.ObjectID) (string, error) {
	program, err := s.ActiveProgram(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.archive == nil || program.ArchiveKey == "" {
		return "", ErrProgramNotArchived
	}
	return s.archive.GeneratePresignedDownloadURL(ctx, program.ArchiveKey, storage.DefaultPresignedURLExpiry)
}

// archiveProgramVersion writes the markdown snapshot to the archive and
// returns its key. Best effort: on failure (or when archiving is disabled)
// it returns "" and the version is saved without a snapshot.
func archiveProgramVersion(ctx context.Context, archive storage.ProgramArchive, program *domain.Program) string {
	if archive == nil {
		return ""
	}
	key := fmt.Sprintf("programs/%s/%s/v%d-%s.md",
		program.UserID.Hex(), program.ProgramID.Hex(), program.Version, uuid.NewString())
	if err := archive.PutMarkdown(ctx, key, program.Markdown); err != nil {
		log.Printf("WARN: Failed to archive program %s v%d: %v", program.ProgramID.Hex(), program.Version, err)
		return ""
	}
	return key
}
