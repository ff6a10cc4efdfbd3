package api

import (
	"net/http"

	"github.com/YisroelArnson/ai-personal-trainer/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	assessmentService service.AssessmentService,
	baselineService service.BaselineService,
	eventLog *service.EventLog,
	calendarService service.CalendarService,
	programService service.ProgramService,
	reviewService service.ReviewService,
) {

	authHandler := NewAuthHandler(authService)
	assessmentHandler := NewAssessmentHandler(assessmentService, baselineService, eventLog)
	calendarHandler := NewCalendarHandler(calendarService)
	programHandler := NewProgramHandler(programService, reviewService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex()})
		})

		// --- Assessment Routes ---
		assessmentGroup := protected.Group("/assessment")
		{
			// GET /api/v1/assessment/session - resume or start the flow
			assessmentGroup.GET("/session", assessmentHandler.GetOrCreateSession)
			// POST /api/v1/assessment/sessions/{sessionId}/steps
			assessmentGroup.POST("/sessions/:sessionId/steps", assessmentHandler.SubmitStepResult)
			// POST /api/v1/assessment/sessions/{sessionId}/skip
			assessmentGroup.POST("/sessions/:sessionId/skip", assessmentHandler.SkipStep)
			// POST /api/v1/assessment/sessions/{sessionId}/baseline
			assessmentGroup.POST("/sessions/:sessionId/baseline", assessmentHandler.SynthesizeBaseline)
			// GET /api/v1/assessment/sessions/{sessionId}/events - the sequenced audit log
			assessmentGroup.GET("/sessions/:sessionId/events", assessmentHandler.GetSessionEvents)
		}

		// GET /api/v1/baseline - latest baseline across sessions
		protected.GET("/baseline", assessmentHandler.GetLatestBaseline)

		// --- Calendar Routes ---
		calendarGroup := protected.Group("/calendar")
		{
			calendarGroup.GET("/events", calendarHandler.ListEvents)
			calendarGroup.POST("/events", calendarHandler.CreateEvent)
			calendarGroup.PATCH("/events/:eventId", calendarHandler.UpdateEvent)
			calendarGroup.POST("/sync", calendarHandler.SyncCalendar)
		}

		// --- Program Routes ---
		programGroup := protected.Group("/programs")
		{
			programGroup.POST("", programHandler.CreateProgram)
			programGroup.GET("/active", programHandler.GetActiveProgram)
			programGroup.GET("/active/export", programHandler.ExportProgram)
		}

		// --- Review Routes ---
		reviewGroup := protected.Group("/reviews")
		{
			// POST /api/v1/reviews/weekly - normally hit by the scheduler, exposed for manual runs
			reviewGroup.POST("/weekly", programHandler.RunWeeklyReview)
			// POST /api/v1/reviews/catch-up - reprojects when the schedule ran dry
			reviewGroup.POST("/catch-up", programHandler.RunCatchUpReview)
		}

		// GET /api/v1/reports/weekly
		protected.GET("/reports/weekly", programHandler.GetWeeklyReport)
	}
}
