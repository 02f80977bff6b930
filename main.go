package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub/presence-service/config"
	"learnhub/presence-service/handlers"
	"learnhub/presence-service/middleware"
	"learnhub/presence-service/services"
	"learnhub/presence-service/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger()

	// Initialize Redis client; this process owns its lifecycle
	redisClient, err := services.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize Redis client", "error", err)
	}
	defer redisClient.Close()

	// Initialize presence service
	presenceService := services.NewPresenceService(redisClient, logger)
	presenceService.SetInactivityThreshold(cfg.InactivityThreshold)
	presenceService.SetRecentLoginWindow(cfg.RecentLoginWindow)

	// Initialize handlers
	presenceHandler := handlers.NewPresenceHandler(presenceService, logger)
	feedHandler := handlers.NewFeedHandler(presenceService, logger, cfg.FeedInterval)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// API routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTSecret))
	v1.Use(middleware.ActivityRefresh(presenceService, logger))
	{
		presence := v1.Group("/presence")
		{
			presence.POST("/login", presenceHandler.Login)
			presence.POST("/logout", presenceHandler.Logout)
			presence.POST("/heartbeat", presenceHandler.Heartbeat)
			presence.GET("/status/:user_id", presenceHandler.Status)
			presence.GET("/online", presenceHandler.Online)
			presence.GET("/stats", presenceHandler.Stats)
			presence.GET("/count", presenceHandler.Count)
			presence.POST("/cleanup", presenceHandler.Cleanup)
			presence.GET("/feed", feedHandler.Feed)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting Presence Service", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
