package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/noeltrans/dispatch_services/internal/platform/config"
	"github.com/noeltrans/dispatch_services/internal/platform/database"
	"github.com/noeltrans/dispatch_services/internal/platform/logger"
	"github.com/noeltrans/dispatch_services/internal/platform/messagebroker"
	"github.com/noeltrans/dispatch_services/internal/platform/secrets"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/directory"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/smsprovider"
	"github.com/noeltrans/dispatch_services/internal/relay_service/app"
	"github.com/noeltrans/dispatch_services/internal/relay_service/repository/postgres"
	httptransport "github.com/noeltrans/dispatch_services/internal/relay_service/transport/http"
)

const serviceName = "relay_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Refusing to start with invalid configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	appLogger.Info("Relay service starting...", "port", cfg.ServerPort, "channel", cfg.SlackChannel)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := database.Migrate(mainCtx, dbPool, appLogger); err != nil {
		appLogger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}

	sealer, err := secrets.NewSealer(cfg.TokenEncryptionKey)
	if err != nil {
		appLogger.Error("Invalid token encryption key", "error", err)
		os.Exit(1)
	}
	if !sealer.Enabled() {
		appLogger.Warn("TOKEN_ENCRYPTION_KEY not set; user access tokens are stored unsealed")
	}

	var broker messagebroker.NATSClient = messagebroker.NoopClient{}
	if cfg.NATSURL != "" {
		natsClient, err := messagebroker.NewNATSClient(cfg.NATSURL, appLogger, serviceName)
		if err != nil {
			appLogger.Error("Failed to connect to NATS; relay events will not be published", "url", cfg.NATSURL, "error", err)
		} else {
			broker = natsClient
			appLogger.Info("NATS client connected", "url", cfg.NATSURL)
		}
	} else {
		appLogger.Info("NATS URL not configured, relay events will not be published.")
	}
	defer broker.Close()

	outboundHTTP := &http.Client{Timeout: 15 * time.Second}

	var smsAdapter smsprovider.Adapter
	switch cfg.SMSProvider {
	case "mock":
		smsAdapter = smsprovider.NewMockSMSProvider(appLogger)
	case "twilio":
		smsAdapter = smsprovider.NewTwilioSMSProvider(appLogger, cfg.TwilioBaseURL, cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, outboundHTTP)
	default:
		appLogger.Error("Unknown SMS provider", "provider", cfg.SMSProvider)
		os.Exit(1)
	}
	appLogger.Info("SMS provider selected", "provider", smsAdapter.GetName())

	relay := app.NewRelayService(app.Deps{
		Correlations: postgres.NewPgCorrelationRepository(dbPool, appLogger),
		Credentials:  postgres.NewPgCredentialRepository(dbPool, sealer, appLogger),
		Directory: directory.NewAirtableClient(outboundHTTP, directory.Options{
			BaseURL: cfg.AirtableBaseURL,
			APIKey:  cfg.AirtableAPIKey,
			BaseID:  cfg.AirtableBaseID,
			Table:   cfg.AirtableTable,
			View:    cfg.AirtableView,
		}, appLogger),
		Chat:   chat.New(outboundHTTP, cfg.SlackBaseURL, cfg.SlackBotToken, appLogger),
		SMS:    smsAdapter,
		Broker: broker,
		States: app.NewDialogStateCodec(cfg.DialogStateSecret, time.Duration(cfg.DialogStateTTLMinutes)*time.Minute),
	}, app.Settings{
		Channel:      cfg.SlackChannel,
		ClientID:     cfg.SlackClientID,
		ClientSecret: cfg.SlackClientSecret,
		TeamID:       cfg.SlackTeamID,
		RedirectURI:  cfg.SlackRedirectURI,
	}, appLogger)

	relayHandler := httptransport.NewRelayHandler(relay, validator.New(), cfg.SlackSigningSecret, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(httptransport.PrometheusMetricsMiddleware)
	relayHandler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Metrics server listening", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		stopSignal := make(chan os.Signal, 1)
		signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server shutdown failed", "error", err)
		}

		// Acknowledged webhooks are still relaying; give them the rest of the shutdown window.
		drained := make(chan struct{})
		go func() {
			relayHandler.Wait()
			close(drained)
		}()
		select {
		case <-drained:
			appLogger.Info("Background relays drained")
		case <-shutdownCtx.Done():
			appLogger.Warn("Shutdown timed out with relays still in flight")
		}

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics server shutdown failed", "error", err)
		}
		return nil
	})

	appLogger.Info("Service is ready and running.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service group encountered an error", "error", err)
	}
	appLogger.Info("Service shutdown complete.")
}
