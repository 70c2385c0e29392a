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
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/handlers"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/smarttransit/bus-booking-backend/pkg/jwt"
	"github.com/smarttransit/bus-booking-backend/pkg/notify"
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

	logger.Info("Starting bus booking backend")
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

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			logger.Fatalf("Failed to apply migrations: %v", err)
		}
		logger.Info("✓ Database schema is up to date")
	}

	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("✓ Redis connected - booking rate limits enabled")
	} else {
		logger.Warn("REDIS_URL not set - booking rate limits disabled")
	}

	loc := cfg.Server.Location()

	// Repositories
	seatRepo := database.NewSeatRepository(db.DB)
	busRepo := database.NewBusRepository(db.DB)
	bookingRepo := database.NewBookingRepository(db.DB)
	paymentRepo := database.NewPaymentRepository(db.DB)
	ticketRepo := database.NewTicketRepository(db.DB)
	userRepo := database.NewUserRepository(db.DB)
	auditRepo := database.NewAuditRepository(db.DB, logger)

	// Payment gateway
	gateway := services.NewPaymentGateway(&cfg.Payment, logger)
	logger.WithField("mode", cfg.Payment.Mode).Info("Payment gateway initialized")

	// Notifications
	sender, closeSender, err := newNotificationSender(cfg.Notification, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize notifications: %v", err)
	}
	defer closeSender()

	renderer := services.NewPDFTicketRenderer(cfg.Ticket.VerifyBaseURL)

	// Post-commit side effects
	eventBus, err := services.NewBookingEventBus(logger)
	if err != nil {
		logger.Fatalf("Failed to create event bus: %v", err)
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	ledger := services.NewSeatLedgerService(db.DB, seatRepo, bookingRepo, logger)
	orderService := services.NewPaymentOrderService(db.DB, paymentRepo, seatRepo, ledger, gateway, logger)
	ticketService := services.NewTicketService(db.DB, ticketRepo, bookingRepo, renderer, loc, logger)
	coordinator := services.NewBookingCoordinatorService(
		db.DB,
		seatRepo,
		busRepo,
		bookingRepo,
		paymentRepo,
		ledger,
		orderService,
		ticketService,
		gateway,
		eventBus,
		services.BookingCoordinatorConfig{
			Currency: cfg.Payment.Currency,
			Location: loc,
		},
		logger,
	)
	refundService := services.NewRefundService(
		db.DB,
		bookingRepo,
		paymentRepo,
		seatRepo,
		busRepo,
		ticketRepo,
		ledger,
		ticketService,
		gateway,
		eventBus,
		logger,
	)
	auditService := services.NewAuditService(auditRepo, cfg.Security.EnableAuditLog)
	rateLimitService := services.NewRateLimitService(redisClient, services.RateLimitConfig{
		MaxHoldRequests: cfg.Redis.HoldRequestLimit,
		HoldWindow:      cfg.Redis.HoldWindow,
	}, logger)

	notifier := services.NewBookingNotifier(ticketService, userRepo, renderer, sender, logger)
	notifier.Register(eventBus)

	eventCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	go func() {
		if err := eventBus.Run(eventCtx); err != nil {
			logger.WithError(err).Error("Event bus stopped")
		}
	}()
	<-eventBus.Running()
	logger.Info("✓ Booking event bus running")

	// Initialize and start cron service
	cronService := services.NewCronService(
		orderService,
		cfg.Jobs.AbandonedOrderSchedule,
		cfg.Jobs.AbandonedOrderGrace,
		logger,
	)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(coordinator, orderService, rateLimitService, auditService, logger)
	bookingHandler := handlers.NewBookingHandler(coordinator, refundService, ticketService, ledger, auditService, logger)
	ticketHandler := handlers.NewTicketHandler(ticketService, auditService, logger)
	adminHandler := handlers.NewAdminHandler(cronService)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	authRequired := middleware.AuthMiddleware(jwtService)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Payment routes (protected)
		payments := v1.Group("/payments")
		payments.Use(authRequired)
		{
			payments.POST("/create-order", paymentHandler.CreateOrder)
			payments.POST("/verify", paymentHandler.Verify)
			payments.GET("/status/:order_id", paymentHandler.Status)
			payments.POST("/:order_id/cancel", paymentHandler.Cancel)
			payments.GET("/my", paymentHandler.My)
		}

		// Booking routes (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(authRequired)
		{
			bookings.POST("/cancel", bookingHandler.Cancel)
			bookings.GET("/my", bookingHandler.My)
			bookings.POST("/:booking_id/refund", bookingHandler.Refund)
			bookings.GET("/:booking_id/ticket", bookingHandler.Ticket)
		}

		// Seat availability (public)
		v1.GET("/buses/:bus_id/availability", bookingHandler.Availability)

		// Ticket routes
		tickets := v1.Group("/tickets")
		{
			// Public: scanned from the printed ticket
			tickets.GET("/verify/:ticket_id", ticketHandler.Verify)

			tickets.POST("/mark-used/:ticket_id", authRequired, middleware.RequireRole("admin"), ticketHandler.MarkUsed)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(authRequired, middleware.RequireRole("admin"))
		{
			admin.GET("/jobs", adminHandler.GetJobStatus)
			admin.POST("/jobs/abandoned-orders/run", adminHandler.RunAbandonedOrders)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop background work after requests have drained
	cronService.Stop()
	stopEvents()
	if err := eventBus.Close(); err != nil {
		logger.WithError(err).Warn("Event bus did not close cleanly")
	}

	logger.Info("Server exited successfully")
}

// newNotificationSender picks the delivery channel for booking emails
func newNotificationSender(cfg config.NotificationConfig, logger *logrus.Logger) (notify.Sender, func(), error) {
	noop := func() {}

	switch cfg.Mode {
	case "smtp":
		logger.WithField("host", cfg.SMTPHost).Info("Notifications: SMTP")
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUsername,
			Password:    cfg.SMTPPassword,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
		}), noop, nil
	case "kafka":
		sender, err := notify.NewKafkaSender(notify.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		logger.WithFields(logrus.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaTopic,
		}).Info("Notifications: Kafka")
		return sender, func() {
			if err := sender.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close Kafka producer")
			}
		}, nil
	default:
		logger.Info("Notifications: log only (no email will be sent)")
		return notify.NewLogSender(logger), noop, nil
	}
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			fields["roles"] = userCtx.Roles
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
