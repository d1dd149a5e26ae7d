//go:build !js

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/silviot/unirtc/pkg/rtc"
)

func TestLoopbackExchangesGreetings(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := runLoopback(ctx, logger, rtc.Configuration{}, rtc.WithEngineLogFilter("off"), rtc.WithLoopbackCandidates())
	if err != nil {
		t.Fatalf("runLoopback: %v", err)
	}
}

func TestRender(t *testing.T) {
	if got := render([]byte(greeting)); got != greeting {
		t.Errorf("render = %q", got)
	}
	if got := render([]byte{0xde, 0xad, 0xbe, 0xef}); got != "[binary data]" {
		t.Errorf("render(binary) = %q", got)
	}
}
