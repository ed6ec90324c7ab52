package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shieldforce/guard-dispatch/internal/app"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/handlers"
	"github.com/shieldforce/guard-dispatch/internal/middleware"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/shieldforce/guard-dispatch/internal/utils"
	"github.com/shieldforce/guard-dispatch/internal/worker"
	"github.com/shieldforce/guard-dispatch/pkg/jwt"
	"github.com/shieldforce/guard-dispatch/pkg/push"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting guard dispatch engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.RunMigrations {
		applied, err := database.RunMigrations(context.Background(), db.DB)
		if err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.WithField("applied", applied).Info("Migrations up to date")
	}

	// Redis backs the notification and payment queues and the offer registry
	logger.Info("Connecting to Redis...")
	q, err := queue.New(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer q.Close()

	// Initialize services
	logger.Info("Initializing services...")
	engine := app.Build(cfg, db.DB, q, logger)
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.TokenExpiry)

	// Background delivery workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var sender push.Sender = &push.LogSender{Logger: logger}
	if cfg.Push.Mode == "production" {
		sender = push.NewHTTPGateway(push.GatewayConfig{URL: cfg.Push.GatewayURL, APIKey: cfg.Push.APIKey})
	}
	go worker.New("push", q, queue.PushQueue, worker.PushDelivery(sender), cfg.Push.MaxRetries, logger).Start(workerCtx)

	if cfg.Payment.WebhookURL != "" {
		poster := push.NewWebhookPoster(cfg.Payment.WebhookURL)
		go worker.New("payment", q, queue.PaymentQueue, worker.WebhookDelivery(poster), cfg.Payment.MaxRetries, logger).Start(workerCtx)
	} else {
		logger.Warn("PAYMENT_WEBHOOK_URL not set, shift-completed events stay queued")
	}

	// Start the at-risk sweep
	if err := engine.Cron.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, q))

	// API v1 routes
	v1 := router.Group("/api/v1")
	handlers.RegisterRoutes(v1, handlers.Handlers{
		Booking: handlers.NewBookingHandler(engine.BookingSvc, engine.Planner, logger),
		Shift: handlers.NewShiftHandler(engine.ShiftSvc, engine.Cancellation, engine.Reviews,
			engine.Personnel, logger),
		Dispatch:     handlers.NewDispatchHandler(engine.Dispatcher, engine.Personnel, engine.Cron, logger),
		Availability: handlers.NewAvailabilityHandler(engine.AvailSvc, engine.Personnel, logger),
	}, middleware.AuthMiddleware(jwtService, logger))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping cron service...")
	engine.Cron.Stop()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger logs each request with the caller's device and identity
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		device := utils.ParseUserAgent(c.Request.UserAgent())
		fields := logrus.Fields{
			"status":      c.Writer.Status(),
			"method":      c.Request.Method,
			"path":        path,
			"query":       c.Request.URL.RawQuery,
			"ip":          utils.GetRealIP(c),
			"latency_ms":  time.Since(start).Milliseconds(),
			"device_type": device.DeviceType,
			"platform":    device.Platform,
			"has_auth":    c.GetHeader("Authorization") != "",
		}
		if device.IsBot {
			fields["bot"] = true
		}
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}
		if roles, exists := c.Get("roles"); exists {
			fields["roles"] = roles
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

func healthCheckHandler(db *database.PostgresDB, q *queue.RedisQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus, redisStatus := "healthy", "healthy"
		if err := db.Health(ctx); err != nil {
			dbStatus = "unhealthy"
		}
		if err := q.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}

		status := http.StatusOK
		overall := "healthy"
		if dbStatus != "healthy" || redisStatus != "healthy" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"database":  dbStatus,
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
