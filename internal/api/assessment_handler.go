package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/YisroelArnson/ai-personal-trainer/internal/domain"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository"
	"github.com/YisroelArnson/ai-personal-trainer/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssessmentHandler holds the assessment and baseline service dependencies.
type AssessmentHandler struct {
	assessmentService service.AssessmentService
	baselineService   service.BaselineService
	eventLog          *service.EventLog
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(
	assessmentService service.AssessmentService,
	baselineService service.BaselineService,
	eventLog *service.EventLog,
) *AssessmentHandler {
	return &AssessmentHandler{
		assessmentService: assessmentService,
		baselineService:   baselineService,
		eventLog:          eventLog,
	}
}

// --- Request/Response Structs ---

type SubmitStepRequest struct {
	StepID string         `json:"stepId" binding:"required"`
	Result map[string]any `json:"result" binding:"required"`
}

type SkipStepRequest struct {
	StepID string `json:"stepId" binding:"required"`
	Reason string `json:"reason"`
}

// SessionResponse bundles the session with the step it is positioned at so
// the client can render without a second round trip.
type SessionResponse struct {
	Session     *domain.AssessmentSession `json:"session"`
	CurrentStep *domain.AssessmentStep    `json:"currentStep,omitempty"`
}

// --- Handler Methods ---

// GetOrCreateSession handles GET /assessment/session
func (h *AssessmentHandler) GetOrCreateSession(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	session, err := h.assessmentService.GetOrCreateSession(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load assessment session")
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Session:     session,
		CurrentStep: domain.StepByID(session.CurrentStepID),
	})
}

// SubmitStepResult handles POST /assessment/sessions/:sessionId/steps
func (h *AssessmentHandler) SubmitStepResult(c *gin.Context) {
	sessionID, ok := h.sessionIDParam(c)
	if !ok {
		return
	}

	var req SubmitStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	submission, err := h.assessmentService.SubmitStepResult(c.Request.Context(), sessionID, req.StepID, req.Result)
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// SkipStep handles POST /assessment/sessions/:sessionId/skip
func (h *AssessmentHandler) SkipStep(c *gin.Context) {
	sessionID, ok := h.sessionIDParam(c)
	if !ok {
		return
	}

	var req SkipStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	submission, err := h.assessmentService.SkipStep(c.Request.Context(), sessionID, req.StepID, req.Reason)
	if err != nil {
		h.handleSubmissionError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

// SynthesizeBaseline handles POST /assessment/sessions/:sessionId/baseline
func (h *AssessmentHandler) SynthesizeBaseline(c *gin.Context) {
	sessionID, ok := h.sessionIDParam(c)
	if !ok {
		return
	}

	baseline, err := h.baselineService.SynthesizeBaseline(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else if errors.Is(err, service.ErrSynthesisParse) {
			abortWithError(c, http.StatusBadGateway, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to synthesize baseline")
		}
		return
	}
	c.JSON(http.StatusCreated, baseline)
}

// GetLatestBaseline handles GET /baseline
func (h *AssessmentHandler) GetLatestBaseline(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	baseline, err := h.baselineService.LatestForUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "No baseline found")
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load baseline")
		}
		return
	}
	c.JSON(http.StatusOK, baseline)
}

// GetSessionEvents handles GET /assessment/sessions/:sessionId/events
func (h *AssessmentHandler) GetSessionEvents(c *gin.Context) {
	sessionID, ok := h.sessionIDParam(c)
	if !ok {
		return
	}

	events, err := h.eventLog.History(c.Request.Context(), sessionID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load session events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Helpers ---

func (h *AssessmentHandler) sessionIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	sessionID, err := primitive.ObjectIDFromHex(c.Param("sessionId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid session ID format")
		return primitive.NilObjectID, false
	}
	return sessionID, true
}

func (h *AssessmentHandler) handleSubmissionError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrSessionNotFound) {
		abortWithError(c, http.StatusNotFound, err.Error())
	} else {
		abortWithError(c, http.StatusInternalServerError, "Failed to record assessment step")
	}
}
