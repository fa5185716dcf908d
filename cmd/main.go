package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/esllessons/backend/docs"
	"github.com/esllessons/backend/internal/compression"
	"github.com/esllessons/backend/internal/config"
	"github.com/esllessons/backend/internal/docx"
	"github.com/esllessons/backend/internal/gemini"
	"github.com/esllessons/backend/internal/handlers"
	"github.com/esllessons/backend/internal/logger"
	loggerMiddleware "github.com/esllessons/backend/internal/logger/middleware"
	"github.com/esllessons/backend/internal/middleware"
	"github.com/esllessons/backend/internal/repositories"
	"github.com/esllessons/backend/internal/services"
	"github.com/esllessons/backend/internal/storage"
	"github.com/esllessons/backend/internal/viewer"
	"github.com/esllessons/backend/migrations"
	"github.com/esllessons/backend/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// multipartOverhead is the room left for multipart boundaries and headers above MAX_UPLOAD_SIZE
const multipartOverhead = 1024 * 1024

// @title ESL Lesson Viewer API
// @version 1.0
// @description API for uploading DOCX lessons, viewing them and explaining selected text

// @host localhost:8080
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting ESL Lesson Viewer", zap.String("storage_driver", cfg.Storage.Driver))

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize object store for original uploads
	ctx := context.Background()
	objectStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize object store", zap.Error(err))
	}
	if closer, ok := objectStore.(io.Closer); ok {
		defer closer.Close()
	}

	// Initialize repositories
	lessonRepo := repositories.NewLessonRepository(db, compression.ZstdCompressor{}, logger.Logger)

	// Initialize services
	lessonService := services.NewLessonService(lessonRepo, docx.NewConverter(), objectStore, cfg.Storage.Timeout, logger.Logger)
	geminiClient := gemini.NewClient(cfg.Gemini, logger.Logger)
	analysisService := services.NewAnalysisService(geminiClient, logger.Logger)
	sessions := viewer.NewManager(lessonService, analysisService, cfg.Session, logger.Logger)

	// Initialize handlers
	pageHandler, err := handlers.NewPageHandler(web.TemplatesFS, web.StaticFS, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize page handler", zap.Error(err))
	}
	lessonHandler := handlers.NewLessonHandler(lessonService, cfg.Server.MaxUploadSize, logger.Logger)
	analysisHandler := handlers.NewAnalysisHandler(analysisService, logger.Logger)
	viewerHandler := handlers.NewViewerHandler(sessions, cfg.Server.MaxUploadSize, cfg.Session.SecureCookie, logger.Logger)
	healthHandler := handlers.NewHealthHandler(db, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.SecureHeadersMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(cfg.Server.RateLimitPerMinute, time.Minute))
	r.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxUploadSize + multipartOverhead))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Register routes
	healthHandler.RegisterRoutes(r)
	pageHandler.RegisterRoutes(r)
	lessonHandler.RegisterRoutes(r)
	analysisHandler.RegisterRoutes(r)
	viewerHandler.RegisterRoutes(r)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Gemini.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations applies the embedded schema migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "lesson_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
