package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/esthetix/clinic-portal/internal/api/router"
	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/awsconfig"
	"github.com/esthetix/clinic-portal/internal/chat"
	appconfig "github.com/esthetix/clinic-portal/internal/config"
	"github.com/esthetix/clinic-portal/internal/gallery"
	"github.com/esthetix/clinic-portal/internal/http/handlers"
	"github.com/esthetix/clinic-portal/internal/notify"
	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/internal/users"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-portal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET is not set, issued tokens cannot be verified")
	}

	bookingMetrics := metrics.NewBookingMetrics(nil)

	awsCfg, err := awsconfig.Load(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	sesClient := sesv2.NewFromConfig(awsCfg)

	// Stores on the shared schedule table
	slotStore := slots.NewStore(dynamoClient, cfg.ScheduleTable, logger)
	apptStore := appointments.NewStore(dynamoClient, cfg.ScheduleTable, logger)
	userStore := users.NewStore(dynamoClient, cfg.ScheduleTable, logger)
	treatmentStore := treatments.NewStore(dynamoClient, cfg.ScheduleTable, logger)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		logger.Info("treatment catalog cache enabled", "addr", cfg.RedisAddr)
	}
	catalog := treatments.NewCatalog(treatmentStore, redisClient, logger)

	// Notification outbox. With the in-memory queue a delivery worker runs in
	// this process; otherwise cmd/notify-worker consumes the SQS queue.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	var notifier appointments.Notifier
	switch {
	case cfg.UseMemoryQueue:
		queue := notify.NewMemoryQueue(100)
		publisher := notify.NewPublisher(queue, bookingMetrics, logger)
		worker := notify.NewWorker(queue, pickSender(cfg, sesClient, logger), bookingMetrics, logger, 1, cfg.WorkerBatchSize)
		go func() { _ = worker.Run(workerCtx) }()
		notifier = publisher
		logger.Info("notification worker running in-process")
	case cfg.NotifyQueueURL != "":
		notifier = notify.NewPublisher(notify.NewSQSQueue(sqsClient, cfg.NotifyQueueURL), bookingMetrics, logger)
	default:
		logger.Warn("no notification queue configured, booking emails disabled")
	}

	location, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Warn("unknown clinic timezone, using UTC", "timezone", cfg.ClinicTimezone)
		location = time.UTC
	}

	bookingSvc := appointments.NewBookingService(slotStore, apptStore, userStore, notifier, bookingMetrics, logger, cfg.BookingLeadTime, location)
	workflow := appointments.NewWorkflow(apptStore, notifier, bookingMetrics, logger)
	slotManager := slots.NewManager(slotStore, apptStore, logger)

	var llm chat.LLMClient
	if cfg.GeminiAPIKey != "" {
		gemini, err := chat.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		llm = gemini
	} else {
		logger.Warn("GEMINI_API_KEY is not set, chat falls back to FAQ answers")
	}
	chatSvc := chat.NewService(catalog, llm, cfg.ChatRatePerMinute, bookingMetrics, logger)

	imageCache := gallery.NewImageCache(nil, logger)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Metrics:            bookingMetrics,
		Booking:            handlers.NewBookingHandler(bookingSvc, slotStore, logger),
		Admin:              handlers.NewAdminHandler(workflow, slotManager, slotStore, logger),
		Treatments:         handlers.NewTreatmentHandler(catalog, logger),
		Chat:               handlers.NewChatHandler(chatSvc, logger),
		Profile:            handlers.NewProfileHandler(userStore, logger),
		Gallery:            handlers.NewGalleryHandler(imageCache, logger),
		AuthJWTSecret:      cfg.AuthJWTSecret,
		AdminChecker:       userStore,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorker()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// pickSender chooses the email provider. "auto" prefers SendGrid, then SES,
// then the logging stub.
func pickSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	sendgridCfg := notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}
	sesCfg := notify.SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.SESFromName}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := notify.NewSendGridSender(sendgridCfg, logger); s != nil {
			return s
		}
	case "ses":
		if s := notify.NewSESSender(sesClient, sesCfg, logger); s != nil {
			return s
		}
	case "stub":
		return notify.NewStubEmailSender(logger)
	default:
		if s := notify.NewSendGridSender(sendgridCfg, logger); s != nil {
			return s
		}
		if s := notify.NewSESSender(sesClient, sesCfg, logger); s != nil {
			return s
		}
	}
	logger.Warn("no email provider configured, using stub sender", "provider", cfg.EmailProvider)
	return notify.NewStubEmailSender(logger)
}
