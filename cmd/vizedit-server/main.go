// Command vizedit-server serves queries, results and visualizations to
// vizedit clients over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kilupskalvis/vizedit/internal/remote/server"
	"github.com/kilupskalvis/vizedit/internal/store"
)

func main() {
	listen := flag.String("listen", envOrDefault("VIZEDIT_LISTEN", "0.0.0.0:8720"), "Listen address")
	dataDir := flag.String("data-dir", envOrDefault("VIZEDIT_DATA_DIR", "/var/lib/vizedit-server"), "Data directory")
	adminToken := flag.String("admin-token", os.Getenv("VIZEDIT_ADMIN_TOKEN"), "Admin API token")
	logLevel := flag.String("log-level", envOrDefault("VIZEDIT_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", envOrDefault("VIZEDIT_LOG_FORMAT", "json"), "Log format (json, text)")
	tlsCert := flag.String("tls-cert", os.Getenv("VIZEDIT_TLS_CERT"), "TLS certificate file")
	tlsKey := flag.String("tls-key", os.Getenv("VIZEDIT_TLS_KEY"), "TLS key file")
	webhookURLs := flag.String("webhook-urls", os.Getenv("VIZEDIT_WEBHOOK_URLS"), "Comma-separated webhook URLs to notify on events")
	webhookSecret := flag.String("webhook-secret", os.Getenv("VIZEDIT_WEBHOOK_SECRET"), "HMAC secret for signing webhook payloads")
	rpm := flag.Int("requests-per-minute", 0, "Per-token request limit (0 keeps the default)")
	flag.Parse()

	logger := newLogger(*logLevel, *logFormat)

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err, "path", *dataDir)
		os.Exit(1)
	}

	st, err := store.Open(filepath.Join(*dataDir, "vizedit.db"))
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", *dataDir)
		os.Exit(1)
	}

	tokens := server.NewFileTokenStore(filepath.Join(*dataDir, "tokens.json"), logger)
	if err := tokens.Load(); err != nil {
		logger.Error("failed to load token store", "error", err)
		os.Exit(1)
	}

	cfg := server.DefaultServerConfig()
	cfg.AdminToken = *adminToken
	if *rpm > 0 {
		cfg.RequestsPerMinute = *rpm
	}
	if urls := splitURLs(*webhookURLs); len(urls) > 0 {
		cfg.Webhooks = server.NewWebhookNotifier(&server.WebhookConfig{
			URLs:   urls,
			Secret: *webhookSecret,
		}, logger)
		logger.Info("webhooks configured", "count", len(urls))
	}

	h, handlerCleanup := server.Handler(st, tokens, cfg, logger)
	defer handlerCleanup()

	srv := &http.Server{
		Addr:              *listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.Background() },
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting vizedit-server", "listen", *listen, "data_dir", *dataDir)
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = srv.ListenAndServeTLS(*tlsCert, *tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if err := tokens.Save(); err != nil {
		logger.Error("save token last-use stamps", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("close store", "error", err)
	}
	logger.Info("server stopped")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func splitURLs(raw string) []string {
	var urls []string
	for _, u := range strings.Split(raw, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
