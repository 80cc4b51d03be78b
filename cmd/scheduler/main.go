package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront-orderflow/internal/audit"
	"github.com/joao-fontenele/storefront-orderflow/internal/config"
	"github.com/joao-fontenele/storefront-orderflow/internal/inventory"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/orders"
	"github.com/joao-fontenele/storefront-orderflow/internal/sweep"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

func main() {
	var once bool
	rootCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the notification sweeps on a cron schedule",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			run(once)
		},
	}
	rootCmd.Flags().BoolVar(&once, "once", false, "run every sweep once and exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(runOnce bool) {
	ctx := context.Background()

	cfg, err := config.Load("8085")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	_, shutdownTelemetry, err := telemetry.Setup(ctx, "scheduler", cfg.Telemetry.ServiceVersion, cfg.Telemetry.Enabled, logger)
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

	var locks *redsync.Redsync
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		locks = redsync.New(goredis.NewPool(client))
	} else {
		logger.Warn("REDIS_URL not set, sweeps are not coordinated across replicas")
	}

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

	trail := audit.NewTrail(audit.NewAuditRepository(db), logger)
	restock := inventory.NewService(inventory.NewProductRepository(db), dispatcher, trail, logger)

	sweeper := sweep.NewSweeper(
		sweep.NewCartRepository(db),
		orders.NewOrderRepository(db),
		restock,
		dispatcher,
		sweep.Config{
			CartAbandonAfter: cfg.Sweep.CartAbandonAfter,
			FollowUpAfter:    cfg.Sweep.FollowUpAfter,
			BatchSize:        cfg.Sweep.BatchSize,
		},
		logger,
	)
	scheduler := sweep.NewScheduler(locks, 5*time.Minute, logger)

	if runOnce {
		for _, job := range sweeper.Jobs() {
			scheduler.RunJob(ctx, job)
		}
		return
	}

	for _, job := range sweeper.Jobs() {
		if err := scheduler.Add(cfg.Sweep.Schedule, job); err != nil {
			logger.Error("failed to schedule sweep", "error", err, "job", job.Name, "schedule", cfg.Sweep.Schedule)
			os.Exit(1)
		}
	}

	scheduler.Start()
	logger.Info("scheduler started", "schedule", cfg.Sweep.Schedule, "jobs", len(sweeper.Jobs()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	select {
	case <-scheduler.Stop().Done():
		logger.Info("sweeps stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("sweeps still running after timeout")
	}
}
