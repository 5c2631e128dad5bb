package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/esthetix/clinic-portal/internal/awsconfig"
	appconfig "github.com/esthetix/clinic-portal/internal/config"
	"github.com/esthetix/clinic-portal/internal/notify"
	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// The worker drains the notification queue and delivers appointment emails.
// It runs separately from the API so a slow provider never backs up bookings.
func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-portal notify worker", "env", cfg.Env)

	if cfg.NotifyQueueURL == "" {
		logger.Error("NOTIFY_QUEUE_URL is required")
		os.Exit(1)
	}

	awsCfg, err := awsconfig.Load(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
	sender := pickSender(cfg, sesv2.NewFromConfig(awsCfg), logger)

	bookingMetrics := metrics.NewBookingMetrics(nil)
	worker := notify.NewWorker(queue, sender, bookingMetrics, logger, cfg.WorkerWaitSecs, cfg.WorkerBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		cancel()
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
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
