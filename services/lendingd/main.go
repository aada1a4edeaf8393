package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	genesis "lendcore/config"
	"lendcore/observability"
	"lendcore/observability/logging"
	"lendcore/observability/metrics"
	telemetry "lendcore/observability/otel"
	"lendcore/services/lending"
	lendingserver "lendcore/services/lending/server"
	"lendcore/services/lendingd/config"
	"lendcore/storage"
)

var version = "dev"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("lendingd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	env := cfg.Environment
	if env == "" {
		env = strings.TrimSpace(os.Getenv("LEND_ENV"))
	}
	logOpts := []logging.Option{logging.WithLevel(cfg.Log.Level)}
	if cfg.Log.File.Path != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.Log.File))
	}
	logger := logging.Setup("lendingd", env, logOpts...)

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = "lendingd"
	telemetryCfg.ServiceVersion = version
	if telemetryCfg.Endpoint == "" {
		telemetryCfg.Endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if len(telemetryCfg.Headers) == 0 {
		telemetryCfg.Headers = telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	g, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("state store opened",
		slog.String("backend", cfg.Storage.Backend),
		logging.DSNField("path", cfg.Storage.Path))

	protocol := lending.New(db, lending.Options{
		Logger:       logger,
		Metrics:      metrics.Lending(),
		EventMetrics: observability.Events(),
		Prices:       lending.NewPriceBook(),
		Pauses:       g.Pauses.View(),
	})
	if err := protocol.Bootstrap(g); err != nil {
		return err
	}

	handler := lendingserver.New(lendingserver.Config{
		Protocol:      protocol,
		Logger:        logger,
		Metrics:       observability.Query(),
		ExposeMetrics: cfg.ExposeMetrics,
		APITokens:     cfg.Auth.APITokens,
	})

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			listener.Close()
			return errors.New("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}

	srv := &http.Server{
		Handler:           otelhttp.NewHandler(handler, "lendingd"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	if cfg.TLS.Enabled() {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening",
			slog.String("address", listener.Addr().String()),
			slog.Bool("tls", cfg.TLS.Enabled()))
		if cfg.TLS.Enabled() {
			serverErr <- srv.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
			return
		}
		serverErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.Any("error", err))
			_ = srv.Close()
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
