//go:build !js

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/silviot/unirtc/pkg/rtc"
	"github.com/silviot/unirtc/pkg/session"
	"github.com/silviot/unirtc/pkg/signal"
)

type roomOptions struct {
	signalURL       string
	codec           signal.Codec
	channelLabel    string
	rtc             rtc.Configuration
	rtcOptions      []rtc.Option
	listen          string // control API address; empty disables it
	shutdownTimeout time.Duration
}

// runRoom joins rooms through the hub and greets every peer it meets until
// ctx is canceled.
func runRoom(ctx context.Context, logger *slog.Logger, rooms []string, opts roomOptions) error {
	manager := session.NewManager(session.ManagerConfig{
		SignalURL:    opts.signalURL,
		Codec:        opts.codec,
		RTC:          opts.rtc,
		RTCOptions:   opts.rtcOptions,
		ChannelLabel: opts.channelLabel,
		Logger:       logger,
		OnChannel: func(ctx context.Context, peerID string, dc *rtc.DataChannel) error {
			dc.OnOpen(func(ctx context.Context) error {
				logger.Info("channel open, greeting peer", "peer", peerID, "channel", dc.Label())
				return dc.SendText(ctx, greeting)
			})
			dc.OnMessage(func(ctx context.Context, msg rtc.Message) error {
				logger.Info("received message", "peer", peerID, "message", render(msg.Data))
				return nil
			})
			dc.OnClose(func(ctx context.Context) error {
				logger.Info("channel closed", "peer", peerID)
				return nil
			})
			return nil
		},
	})
	defer manager.Close()

	for _, name := range rooms {
		if _, err := manager.JoinRoom(ctx, name); err != nil {
			return err
		}
	}

	var server *http.Server
	if opts.listen != "" {
		router := gin.New()
		router.Use(gin.Recovery())
		manager.RegisterRoutes(router)
		server = &http.Server{Addr: opts.listen, Handler: router}
		go func() {
			logger.Info("control API listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control API error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("control API shutdown error", "error", err)
		}
	}
	return nil
}
