package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-orderflow/internal/config"
	"github.com/joao-fontenele/storefront-orderflow/internal/messaging"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

func main() {
	cfg, err := config.Load("8083")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if len(cfg.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "notification-worker", cfg.Telemetry.ServiceVersion, cfg.Telemetry.Enabled, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	db, err := telemetry.OpenDB(ctx, cfg.PostgresURL, cfg.DBSchema)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	renderer, err := notify.NewRenderer(notify.Site{
		URL:                 cfg.Mail.SiteURL,
		From:                cfg.Mail.From,
		PaymentReceiptEmail: cfg.Mail.PaymentReceiptEmail,
	})
	if err != nil {
		logger.Error("failed to parse notification templates", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	dispatcher := notify.NewDispatcher(renderer,
		notify.NewHTTPSender(cfg.Mail.EmailServiceURL, httpClient),
		notify.NewAttemptRepository(db), logger)

	consumer := messaging.NewConsumer(cfg.Brokers, messaging.TopicNotificationRequested, "notification-worker", logger,
		messaging.WithLogHeaders(notify.HeaderKind, notify.HeaderIntentID))
	defer func() { _ = consumer.Close() }()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           metricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting notification worker", "brokers", cfg.Brokers, "topic", messaging.TopicNotificationRequested)

	if err := consumer.Consume(ctx, dispatcher.HandleMessage); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
