package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sms-screening-service/internal/app"
	"sms-screening-service/internal/config"
	"sms-screening-service/internal/handler"
	"sms-screening-service/internal/metrics"
	"sms-screening-service/internal/repository"
	"sms-screening-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	// Secrets may come from a local .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := app.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting SMS Screening Service...", zap.String("config", *configPath))

	// Initialize remote classifier chain
	provider, err := app.NewProvider(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize classifier", zap.Error(err))
	}
	defer provider.Close()

	screeningMetrics := metrics.NewScreeningMetrics(prometheus.DefaultRegisterer)
	screener := app.NewScreener(cfg, provider, screeningMetrics, logger)

	// Initialize job registry
	repo, err := repository.NewJobRepository(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	jobs := service.NewJobManager(screener, repo, logger)

	// Initialize HTTP handler
	apiHandler := handler.NewHandler(screener, jobs, handler.Options{
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	}, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register routes
	apiHandler.RegisterRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("Server starting", zap.String("address", serverAddr))

	// Graceful shutdown
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Get model info for logging
	modelInfo := provider.GetModelInfo()
	modelName := "unknown"
	if m, ok := modelInfo["model"].(string); ok {
		modelName = m
	}

	logger.Info("SMS Screening Service is running",
		zap.String("port", cfg.Server.Port),
		zap.String("model", modelName),
		zap.Int("workers", cfg.Batch.Workers))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := jobs.Shutdown(ctx); err != nil {
		logger.Error("Background jobs did not stop in time", zap.Error(err))
	}

	logger.Info("Server exited")
}
