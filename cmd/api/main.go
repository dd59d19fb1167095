package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/remit-demo/remit-service/internal/config"
	"github.com/remit-demo/remit-service/internal/fx"
	"github.com/remit-demo/remit-service/internal/handler"
	"github.com/remit-demo/remit-service/internal/integration"
	"github.com/remit-demo/remit-service/internal/logging"
	"github.com/remit-demo/remit-service/internal/middleware"
	"github.com/remit-demo/remit-service/internal/repository"
	"github.com/remit-demo/remit-service/internal/service"
	"github.com/remit-demo/remit-service/internal/service/remittance"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("remit-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	transactions := repository.NewTransactionRepository(db)
	rates := repository.NewExchangeRateRepository(db)
	webhookEvents := repository.NewWebhookEventRepository(db)

	timeout := cfg.ProviderTimeout()
	upiClient := integration.NewUPIClient(cfg.UPIEndpoint, cfg.UPIAPIKey, cfg.UPICallbackURL, timeout)
	adBankClient := integration.NewADBankClient(cfg.ADBankEndpoint, cfg.ADBankAPIKey, cfg.ADBankClientID, timeout)
	wiseClient := integration.NewWiseClient(cfg.WiseEndpoint, cfg.WiseAPIKey, cfg.WiseProfileID, cfg.WiseCallbackURL, timeout)
	userClient := integration.NewUserServiceClient(cfg.UserServiceEndpoint, cfg.UserServiceAPIKey, timeout)

	rateCache := fx.NewRateCache(rates, adBankClient, cfg.RateTTL())

	remitSvc := remittance.NewService(transactions, upiClient, adBankClient, wiseClient, userClient, rateCache, cfg)

	reconciler := service.NewWebhookReconciler(
		webhookEvents, transactions, remitSvc,
		slog.Default().With("component", "reconciler"),
		cfg.ReconcileInterval(), cfg.ReconcileBatchLimit,
	)

	reconcilerCtx, stopReconciler := context.WithCancel(context.Background())
	go reconciler.Start(reconcilerCtx)

	remitHandler := handler.NewRemittanceHandler(remitSvc)
	webhookHandler := handler.NewWebhookHandler(webhookEvents, cfg.WebhookSecret)
	ratesHandler := handler.NewRatesHandler(rateCache, rates)
	healthHandler := handler.NewHealthHandler(db)

	authn := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	mux.Handle("POST /api/v1/transactions", authn(http.HandlerFunc(remitHandler.Create)))
	mux.Handle("GET /api/v1/transactions", authn(http.HandlerFunc(remitHandler.List)))
	mux.Handle("GET /api/v1/transactions/{id}", authn(http.HandlerFunc(remitHandler.Get)))
	mux.Handle("POST /api/v1/transactions/{id}/initiate-payment", authn(http.HandlerFunc(remitHandler.InitiatePayment)))
	mux.Handle("POST /api/v1/transactions/{id}/convert", authn(http.HandlerFunc(remitHandler.Convert)))
	mux.Handle("POST /api/v1/transactions/{id}/transfer", authn(http.HandlerFunc(remitHandler.Transfer)))
	mux.Handle("POST /api/v1/transactions/{id}/check-payment", authn(http.HandlerFunc(remitHandler.CheckPayment)))
	mux.Handle("POST /api/v1/transactions/{id}/check-transfer", authn(http.HandlerFunc(remitHandler.CheckTransfer)))
	mux.Handle("GET /api/v1/quotes", authn(http.HandlerFunc(remitHandler.Quote)))
	mux.Handle("GET /api/v1/recipients", authn(http.HandlerFunc(remitHandler.Recipients)))
	mux.Handle("GET /api/v1/rates", authn(http.HandlerFunc(ratesHandler.Current)))
	mux.Handle("GET /api/v1/rates/history", authn(http.HandlerFunc(ratesHandler.History)))

	// Provider callbacks authenticate with an HMAC signature, not a bearer
	// token.
	mux.HandleFunc("POST /api/v1/webhooks/upi-callback", webhookHandler.ReceiveUPICallback)
	mux.HandleFunc("POST /api/v1/webhooks/wise-callback", webhookHandler.ReceiveWiseCallback)

	chain := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopReconciler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
