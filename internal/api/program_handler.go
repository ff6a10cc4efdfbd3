package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/YisroelArnson/ai-personal-trainer/internal/service"

	"github.com/gin-gonic/gin"
)

// ProgramHandler holds the program and review service dependencies.
type ProgramHandler struct {
	programService service.ProgramService
	reviewService  service.ReviewService
}

// NewProgramHandler creates a new ProgramHandler.
func NewProgramHandler(programService service.ProgramService, reviewService service.ReviewService) *ProgramHandler {
	return &ProgramHandler{
		programService: programService,
		reviewService:  reviewService,
	}
}

// --- Handler Methods ---

// CreateProgram handles POST /programs
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	var input service.ProgramInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	program, err := h.programService.CreateProgram(c.Request.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrEmptyProgram) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create program")
		}
		return
	}
	c.JSON(http.StatusCreated, program)
}

// GetActiveProgram handles GET /programs/active
func (h *ProgramHandler) GetActiveProgram(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	program, err := h.programService.ActiveProgram(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveProgram) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load active program")
		}
		return
	}
	c.JSON(http.StatusOK, program)
}

// ExportProgram handles GET /programs/active/export
func (h *ProgramHandler) ExportProgram(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	url, err := h.programService.ExportProgramURL(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveProgram) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else if errors.Is(err, service.ErrProgramNotArchived) {
			abortWithError(c, http.StatusConflict, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to generate export URL")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": url})
}

// RunWeeklyReview handles POST /reviews/weekly
func (h *ProgramHandler) RunWeeklyReview(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	result, err := h.reviewService.RunWeeklyReview(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrProgramRewrite) {
			abortWithError(c, http.StatusBadGateway, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to run weekly review")
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunCatchUpReview handles POST /reviews/catch-up
func (h *ProgramHandler) RunCatchUpReview(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	result, err := h.reviewService.CheckAndRunCatchUpReview(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to run catch-up projection")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetWeeklyReport handles GET /reports/weekly
func (h *ProgramHandler) GetWeeklyReport(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	report, err := h.reviewService.GenerateWeeklyReport(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to generate weekly report")
		return
	}
	c.JSON(http.StatusOK, report)
}
