package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YisroelArnson/ai-personal-trainer/internal/api"
	"github.com/YisroelArnson/ai-personal-trainer/internal/config"
	"github.com/YisroelArnson/ai-personal-trainer/internal/llm"
	"github.com/YisroelArnson/ai-personal-trainer/internal/repository/mongo"
	"github.com/YisroelArnson/ai-personal-trainer/internal/service"
	"github.com/YisroelArnson/ai-personal-trainer/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting AI Personal Trainer Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureSessionIndexes(ctx, appDB.Collection("assessment_sessions"))
		mongo.EnsureEventIndexes(ctx, appDB.Collection("assessment_events"))
		mongo.EnsureStepResultIndexes(ctx, appDB.Collection("step_results"))
		mongo.EnsureBaselineIndexes(ctx, appDB.Collection("baselines"))
		mongo.EnsureProgramIndexes(ctx, appDB)
		mongo.EnsureCalendarIndexes(ctx, appDB)
		mongo.EnsureReportIndexes(ctx, appDB.Collection("weekly_reports"))
		log.Println("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	var archive storage.ProgramArchive
	if cfg.S3.BucketName != "" {
		log.Println("Initializing program archive storage...")
		archive, err = storage.NewS3Archive(cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 archive: %v", err)
		}
	} else {
		log.Println("WARN: No S3 bucket configured; program archiving disabled.")
	}

	// --- Initialize LLM Client ---
	log.Println("Initializing Anthropic client...")
	completer, err := llm.NewAnthropicClient(cfg.Anthropic)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Anthropic client: %v", err)
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB)
	eventRepo := mongo.NewMongoEventRepository(appDB)
	stepResultRepo := mongo.NewMongoStepResultRepository(appDB)
	baselineRepo := mongo.NewMongoBaselineRepository(appDB)
	programRepo := mongo.NewMongoProgramRepository(appDB)
	calendarRepo := mongo.NewMongoCalendarRepository(appDB)
	reportRepo := mongo.NewMongoReportRepository(appDB)

	// --- Initialize Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	eventLog := service.NewEventLog(eventRepo)
	assessmentService := service.NewAssessmentService(sessionRepo, stepResultRepo, eventLog)
	baselineService := service.NewBaselineService(sessionRepo, stepResultRepo, baselineRepo, eventLog, completer)
	calendarService := service.NewCalendarService(programRepo, calendarRepo)
	programService := service.NewProgramService(programRepo, calendarService, archive)
	reviewService := service.NewReviewService(programRepo, calendarRepo, baselineRepo, reportRepo, calendarService, completer, archive)

	// --- Initialize Gin Engine ---
	// gin.SetMode(gin.ReleaseMode) // Uncomment for production
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, assessmentService, baselineService, eventLog, calendarService, programService, reviewService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		// Review and baseline endpoints block on a model completion, which can
		// take minutes.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
