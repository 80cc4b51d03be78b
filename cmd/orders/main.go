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

	"github.com/joao-fontenele/storefront-orderflow/internal/audit"
	"github.com/joao-fontenele/storefront-orderflow/internal/auth"
	"github.com/joao-fontenele/storefront-orderflow/internal/config"
	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/inventory"
	"github.com/joao-fontenele/storefront-orderflow/internal/messaging"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/orders"
	"github.com/joao-fontenele/storefront-orderflow/internal/ratelimit"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("8081")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "orders", cfg.Telemetry.ServiceVersion, cfg.Telemetry.Enabled, logger)
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

	limiter, closeLimiter, err := ratelimit.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeLimiter() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	auditRepo := audit.NewAuditRepository(db)
	trail := audit.NewTrail(auditRepo, logger)

	var catalog orders.Catalog = inventory.NewProductRepository(db)
	if cfg.Upstreams.InventoryURL != "" {
		catalog = inventory.NewClient(cfg.Upstreams.InventoryURL, httpClient)
	}

	ledger := orders.NewLedger(orders.NewOrderRepository(db), catalog, trail, orders.Config{
		OrderExpiry: cfg.Checkout.OrderExpiry,
		Currency:    cfg.Checkout.Currency,
	}, logger)
	handler := orders.NewHandler(ledger, logger)
	auditHandler := audit.NewHandler(auditRepo, logger)
	guard := auth.NewGuard(cfg.AdminToken, trail, logger)

	checkoutLimit := ratelimit.NewMiddleware(limiter, "checkout", ratelimit.Limit{
		Max:    cfg.Checkout.RateLimitMax,
		Window: cfg.Checkout.RateLimitWindow,
	}, logger).OnDenied(func(r *http.Request, key string, res ratelimit.Result) {
		trail.Record(r.Context(), audit.WithRequest(domain.AuditLogEntry{
			Action:       domain.AuditSecurityRateLimited,
			Severity:     domain.SeverityWarning,
			ResourceType: domain.ResourceEndpoint,
			ResourceID:   r.Method + " " + r.URL.Path,
			Metadata: map[string]any{
				"key":      key,
				"limit":    res.Limit,
				"reset_at": res.ResetAt.UTC().Format(time.RFC3339),
			},
		}, r))
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(checkoutLimit.Wrap(handler.HandleCheckout)))
	mux.HandleFunc("GET /orders/{orderNumber}", telemetry.WithHTTPRoute(handler.HandleGetByNumber))
	mux.HandleFunc("GET /admin/orders/{id}", telemetry.WithHTTPRoute(guard.Require(handler.HandleAdminGet)))
	mux.HandleFunc("POST /admin/orders/{id}/confirm-payment", telemetry.WithHTTPRoute(guard.Require(handler.HandleConfirmPayment)))
	mux.HandleFunc("PATCH /admin/orders/{id}", telemetry.WithHTTPRoute(guard.Require(handler.HandleUpdate)))
	mux.HandleFunc("DELETE /admin/orders/{id}", telemetry.WithHTTPRoute(guard.Require(handler.HandleDelete)))
	mux.HandleFunc("GET /admin/audit-logs", telemetry.WithHTTPRoute(guard.Require(auditHandler.HandleList)))
	mux.HandleFunc("GET /admin/audit-logs/stats", telemetry.WithHTTPRoute(guard.Require(auditHandler.HandleStats)))
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	renderer, err := notify.NewRenderer(notify.Site{
		URL:                 cfg.Mail.SiteURL,
		From:                cfg.Mail.From,
		PaymentReceiptEmail: cfg.Mail.PaymentReceiptEmail,
	})
	if err != nil {
		logger.Error("failed to parse notification templates", "error", err)
		os.Exit(1)
	}

	var deliverer notify.Deliverer = notify.NewDispatcher(renderer,
		notify.NewHTTPSender(cfg.Mail.EmailServiceURL, httpClient),
		notify.NewAttemptRepository(db), logger)
	if len(cfg.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Brokers, messaging.TopicNotificationRequested)
		defer func() { _ = producer.Close() }()
		deliverer = notify.NewKafkaDeliverer(producer)
		logger.Info("notifications routed through kafka", "topic", messaging.TopicNotificationRequested)
	}

	relay := notify.NewRelay(notify.NewOutboxRepository(db), deliverer, notify.RelayConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}, logger)

	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(ratelimit.NewIPResolver(cfg.TrustedProxies).Middleware(mux), "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	stopRelay()
	select {
	case <-relayDone:
	case <-shutdownCtx.Done():
		logger.Warn("outbox relay did not stop in time")
	}
}
