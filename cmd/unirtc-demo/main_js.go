//go:build js

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/silviot/unirtc/pkg/rtc"
)

// In the browser only the loopback mode runs; output goes to the console.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := rtc.Configuration{
		IceServers: []rtc.IceServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}
	if err := runLoopback(context.Background(), logger, cfg); err != nil {
		logger.Error("demo failed", "error", err)
		return
	}
	logger.Info("greetings exchanged")

	select {}
}
