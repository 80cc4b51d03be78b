package main

import (
	"context"
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
	"github.com/joao-fontenele/storefront-orderflow/internal/inventory"
	"github.com/joao-fontenele/storefront-orderflow/internal/notify"
	"github.com/joao-fontenele/storefront-orderflow/internal/ratelimit"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("8082")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.RequirePostgres(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	metricsHandler, shutdownTelemetry, err := telemetry.Setup(ctx, "inventory", cfg.Telemetry.ServiceVersion, cfg.Telemetry.Enabled, logger)
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
	service := inventory.NewService(inventory.NewProductRepository(db), dispatcher, trail, logger)
	handler := inventory.NewHandler(service, logger)
	guard := auth.NewGuard(cfg.AdminToken, trail, logger)

	waitlistLimit := ratelimit.NewMiddleware(limiter, "waitlist", ratelimit.Limit{
		Max:    cfg.Checkout.RateLimitMax,
		Window: cfg.Checkout.RateLimitWindow,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(handler.HandleGetProduct))
	mux.HandleFunc("POST /products/{id}/waitlist", telemetry.WithHTTPRoute(waitlistLimit.Wrap(handler.HandleWaitlist)))
	mux.HandleFunc("PUT /admin/products/{id}/stock/{size}", telemetry.WithHTTPRoute(guard.Require(handler.HandleSetStock)))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(ratelimit.NewIPResolver(cfg.TrustedProxies).Middleware(mux), "inventory",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting inventory service", "port", cfg.Port)
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
		os.Exit(1)
	}
}
