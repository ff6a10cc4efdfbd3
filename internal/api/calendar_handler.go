package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CalendarHandler holds the calendar service dependency.
type CalendarHandler struct {
	calendarService service.CalendarService
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(calendarService service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// --- Request/Response Structs ---

type CreateEventRequest struct {
	Title   string    `json:"title"`
	StartAt time.Time `json:"startAt" binding:"required"`
	EndAt   time.Time `json:"endAt"`
}

// --- Handler Methods ---

// ListEvents handles GET /calendar/events?from=...&to=...
// Both bounds are RFC 3339 timestamps; they default to a window of one week
// back and four weeks forward.
func (h *CalendarHandler) ListEvents(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 28)

	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp, expected RFC 3339")
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp, expected RFC 3339")
			return
		}
	}

	events, err := h.calendarService.ListEvents(c.Request.Context(), userID, from, to)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list calendar events")
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// SyncCalendar handles POST /calendar/sync
func (h *CalendarHandler) SyncCalendar(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	result, err := h.calendarService.SyncCalendarFromProgram(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to sync calendar from program")
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpdateEvent handles PATCH /calendar/events/:eventId
func (h *CalendarHandler) UpdateEvent(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	eventID, err := primitive.ObjectIDFromHex(c.Param("eventId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid event ID format")
		return
	}

	var update service.EventUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	event, err := h.calendarService.UpdateEvent(c.Request.Context(), userID, eventID, update)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to update calendar event")
		}
		return
	}
	c.JSON(http.StatusOK, event)
}

// CreateEvent handles POST /calendar/events
func (h *CalendarHandler) CreateEvent(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "User not authenticated properly")
		return
	}

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	event, err := h.calendarService.CreateUserEvent(c.Request.Context(), userID, req.Title, req.StartAt, req.EndAt)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to create calendar event")
		return
	}
	c.JSON(http.StatusCreated, event)
}
