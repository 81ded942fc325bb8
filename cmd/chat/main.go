// Package main provides the chat server: the embedded web UI, the websocket
// session endpoint and the JSON chat API backed by the knowledge base.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustmed/internal/chat"
	"trustmed/internal/config"
	"trustmed/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "Optional .env file with AWS and Bedrock settings")
	configFile := flag.String("config", "", "Optional YAML file with server settings")
	addr := flag.String("addr", "", "Listen address (overrides CHAT_ADDR / PORT)")

	flag.Parse()

	cfg, err := config.LoadServerConfig(*envFile, *configFile)
	if err != nil {
		log.Fatalf("❌ Failed to load server config: %v\n", err)
	}

	if *addr != "" {
		cfg.Addr = *addr
	}

	lg := logger.NewLogger(cfg.LogLevel)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := chat.NewApp(ctx, cfg, lg)
	if err != nil {
		log.Fatalf("❌ Failed to start chat: %v\n", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info(fmt.Sprintf("🚀 TrustMed AI listening on %s (region %s)", cfg.Addr, cfg.Region))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	lg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("Shutdown failed", "error", err)
	}
}
