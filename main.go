package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ous-sama22/UniCourt-Automation-Back-end/config"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/handler"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/middleware"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/pkg/logger"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/queue"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/service"
	"github.com/ous-sama22/UniCourt-Automation-Back-end/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize case store
	store, err := service.NewCaseStore(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open case store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Artifact archiving is optional
	var artifacts *service.ArtifactStore
	if cfg.Minio.Enabled {
		artifacts, err = service.NewArtifactStore(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize artifact store", "error", err)
			os.Exit(1)
		}
		if err := artifacts.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure artifact bucket", "error", err)
			os.Exit(1)
		}
	}

	// Initialize pipeline services
	portal := service.NewAgentPortal(&cfg.Unicourt)
	extractor := service.NewLLMExtractor(&cfg.Extractor)
	resolver := service.NewDocumentResolver(&cfg.Documents, store)
	processor := service.NewCaseProcessor(cfg, store, resolver, extractor, artifacts)

	// Start the worker pool
	q := queue.New()
	active := queue.NewActiveSet()
	pool := worker.NewPool(cfg, q, active, portal, processor, store)
	pool.Start(context.Background())

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	casesHandler := handler.NewCasesHandler(store, q, active, pool, processor, artifacts)
	serviceHandler := handler.NewServiceHandler(cfg, q, pool)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/cases/submit", casesHandler.Submit)
		protected.GET("/cases", casesHandler.List)
		protected.GET("/cases/:case_number/status", casesHandler.Status)
		protected.POST("/cases/batch-status", casesHandler.BatchStatus)
		protected.GET("/service/status", serviceHandler.Status)
		protected.GET("/service/config", serviceHandler.GetConfig)
		protected.POST("/service/restart", serviceHandler.Restart)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	// Stop intake first, then let in-flight cases drain
	pool.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
