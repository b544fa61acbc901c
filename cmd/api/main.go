package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/joshua-takyi/humanfolio/internal/config"
	"github.com/joshua-takyi/humanfolio/internal/connect"
	"github.com/joshua-takyi/humanfolio/internal/container"
	"github.com/joshua-takyi/humanfolio/internal/logging"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
	"github.com/joshua-takyi/humanfolio/internal/routes"
	"github.com/joshua-takyi/humanfolio/internal/session"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireServer(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("Starting Humanfolio API server", "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := connect.MongoDBConnect(ctx, cfg.MongoURI())
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to MongoDB successfully")
	defer func() {
		if err := connect.MongoDBDisconnect(mongoClient); err != nil {
			logger.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()

	repo := models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to ensure indexes", "error", err)
	}

	var cld *cloudinary.Cloudinary
	if cfg.CloudinaryEnabled() {
		cld, err = connect.CloudinaryCredentials(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Error("Failed to connect to Cloudinary", "error", err)
			os.Exit(1)
		}
		logger.Info("Images are uploaded to Cloudinary")
	}

	var genaiClient *genai.Client
	if cfg.GeminiEnabled() {
		genaiClient, err = connect.GenAIClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Error("Failed to create GenAI client", "error", err)
			os.Exit(1)
		}
		logger.Info("Content judgment uses Gemini", "model", cfg.GeminiModel)
	}

	// The server authenticates with tokens, so its own session identity stays
	// in memory.
	appContainer, err := container.NewContainer(logger, cfg, container.Deps{
		Store:      repo,
		Session:    session.NewMemoryStore(),
		Cloudinary: cld,
		GenAI:      genaiClient,
	})
	if err != nil {
		logger.Error("Failed to build container", "error", err)
		os.Exit(1)
	}

	rec := appContainer.Reconciler
	if err := rec.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", "error", err)
		os.Exit(1)
	}
	noticesDone := make(chan struct{})
	go logNotices(logger, rec.Notices(), noticesDone)
	go waitReady(ctx, logger, rec, cfg.ReadyTimeout)

	router := routes.SetupRoutes(appContainer)

	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	// long-lived event streams end when shutdown begins
	server.RegisterOnShutdown(cancelStreams)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed to start", "error", err)
		}
	}

	logger.Info("Server is shutting down...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	rec.Stop()
	<-noticesDone
	logger.Info("Server exited")
}

// logNotices reports writes the store rejected after the caller moved on.
func logNotices(logger *slog.Logger, notices <-chan reconciler.Notice, done chan<- struct{}) {
	defer close(done)
	for n := range notices {
		logger.Warn("Background write failed",
			"kind", n.Kind,
			"op", n.Op,
			"id", n.ID,
			"error", n.Err,
		)
	}
}

func waitReady(ctx context.Context, logger *slog.Logger, rec *reconciler.Reconciler, timeout time.Duration) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rec.WaitReady(ctx); err != nil {
		logger.Warn("Mirrors still loading", "waited", timeout, "error", err)
		return
	}
	logger.Info("Mirrors loaded", "took", time.Since(start))
}
