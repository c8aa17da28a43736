package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"backchain/chain/resilient"
	"backchain/config"
	"backchain/gateway/middleware"
	"backchain/gateway/routes"
	"backchain/metadata"
	"backchain/observability"
	"backchain/observability/logging"
	telemetry "backchain/observability/otel"
	"backchain/views"
	"backchain/wallet"
)

const serviceName = "bkc-gateway"

func main() {
	var cfgPath string
	var listenFlag string
	flag.StringVar(&cfgPath, "config", "", "path to configuration (TOML or YAML)")
	flag.StringVar(&listenFlag, "listen", "", "override gateway.listen")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if listenFlag != "" {
		cfg.Gateway.Listen = listenFlag
	}

	logger := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		ChainID:     cfg.Network.ChainID,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		logger.Error("failed to initialise telemetry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.Network.RequestTimeout.Duration)
	client, err := ethclient.DialContext(dialCtx, cfg.Network.RPCURL)
	cancelDial()
	if err != nil {
		logger.Error("dial rpc", logging.MaskURL("rpc_url", cfg.Network.RPCURL), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Close()

	addrs, err := cfg.Addresses()
	if err != nil {
		logger.Error("contract addresses", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// Query-only: no signing agent.
	connector, err := wallet.NewConnector(client, nil, addrs, cfg.ChainIDBig(), wallet.WithLogger(logger))
	if err != nil {
		logger.Error("bind contracts", slog.String("error", err.Error()))
		os.Exit(1)
	}

	reader := resilient.NewReader(resilient.WithLogger(logger), resilient.WithMetrics(observability.Reads()))
	aggregator := views.New(connector,
		views.WithReader(reader),
		views.WithTiers(cfg.BoosterTiers),
		views.WithFetcher(metadata.NewFetcher(cfg.Network.IPFSGateway, &http.Client{Timeout: cfg.Network.RequestTimeout.Duration})),
		views.WithLogger(logger),
		views.WithNetworkMetrics(observability.Network()),
		views.WithoutCaches(),
	)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   serviceName,
		MetricsPrefix: "bkc_gateway",
		LogRequests:   logging.ParseLevel(cfg.Logging.Level) == slog.LevelDebug,
		Enabled:       true,
	}, logger)

	limit := middleware.RateLimit{
		RequestsPerMinute: cfg.Gateway.RateLimitPerMinute,
		Burst:             cfg.Gateway.RateLimitBurst,
	}
	router, err := routes.New(routes.Config{
		Views:  aggregator,
		Logger: logger,
		RateLimiter: middleware.NewRateLimiter(map[string]middleware.RateLimit{
			routes.LimitPublic:   limit,
			routes.LimitAccounts: limit,
		}, logger),
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.Gateway.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		},
		ViewTimeout: cfg.Gateway.ViewTimeout.Duration,
	})
	if err != nil {
		logger.Error("configure routes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := http.Handler(router)
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, serviceName)
	}

	if !isLoopbackAddress(cfg.Gateway.Listen) && len(cfg.Gateway.AllowedOrigins) == 0 {
		logger.Warn("gateway listens beyond loopback with CORS open to every origin",
			slog.String("listen", cfg.Gateway.Listen))
	}

	server := &http.Server{
		Addr:         cfg.Gateway.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.Gateway.ReadTimeout.Duration,
		WriteTimeout: cfg.Gateway.WriteTimeout.Duration,
		IdleTimeout:  2 * cfg.Gateway.ReadTimeout.Duration,
	}

	listener, err := net.Listen("tcp", cfg.Gateway.Listen)
	if err != nil {
		logger.Error("listen", slog.String("listen", cfg.Gateway.Listen), slog.String("error", err.Error()))
		os.Exit(1)
	}
	go func() {
		logger.Info("gateway listening",
			slog.String("listen", listener.Addr().String()),
			logging.MaskURL("rpc_url", cfg.Network.RPCURL),
			slog.Uint64("chain_id", cfg.Network.ChainID))
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", slog.String("error", serveErr.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func isLoopbackAddress(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
