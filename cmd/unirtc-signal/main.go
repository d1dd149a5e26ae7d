package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/silviot/unirtc/pkg/config"
	rtcsignal "github.com/silviot/unirtc/pkg/signal"
)

func main() {
	flags := pflag.NewFlagSet("unirtc-signal", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "YAML config file")
	addr := flags.String("addr", "", "listen address (overrides UNIRTC_HTTP_ADDRESS)")
	flags.Usage = config.Usage("Environment variables:", func() {
		fmt.Fprintf(os.Stderr, "Usage: unirtc-signal [flags]\n\nFlags:\n")
		flags.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	})
	flags.Parse(os.Args[1:])

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTP.Address = *addr
	}

	logger := config.SetupLogger(cfg.Env, cfg.LogLevel)
	logger.Info("starting signaling hub",
		"addr", cfg.HTTP.Address,
		"env", cfg.Env,
		"allowed_origins", cfg.Signal.AllowedOrigins)

	hub := rtcsignal.NewHub(rtcsignal.HubConfig{
		Logger:         logger,
		AllowedOrigins: cfg.Signal.AllowedOrigins,
		PingInterval:   cfg.Signal.PingInterval,
		MaxRoomSize:    cfg.Signal.MaxRoomSize,
	})

	server := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: hub.Router(),
	}

	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, gracefully shutting down")

	// close websockets first; Shutdown does not wait for hijacked connections
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("signaling hub stopped")
}
