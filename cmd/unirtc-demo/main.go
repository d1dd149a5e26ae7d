//go:build !js

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/silviot/unirtc/pkg/config"
	"github.com/silviot/unirtc/pkg/rtc"
)

const usageHeader = `Usage:
  unirtc-demo [flags] loopback
  unirtc-demo [flags] room <name>...

loopback connects two peers inside this process and exchanges a greeting.
room joins rooms on the signaling hub and greets every member.

Flags:
`

func main() {
	flags := pflag.NewFlagSet("unirtc-demo", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "YAML config file")
	listen := flags.String("listen", "", "serve the room control API on this address")
	codecName := flags.String("codec", "", "signaling codec, json or cbor (overrides UNIRTC_SIGNAL_CODEC)")
	flags.Usage = config.Usage("Environment variables:", func() {
		fmt.Fprint(os.Stderr, usageHeader)
		flags.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	})
	flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *codecName != "" {
		cfg.Signal.Codec = *codecName
	}

	logger := config.SetupLogger(cfg.Env, cfg.LogLevel)

	rtcCfg, err := cfg.RTCConfiguration()
	if err != nil {
		logger.Error("invalid webrtc configuration", "error", err)
		os.Exit(1)
	}
	rtcOpts := []rtc.Option{rtc.WithEngineLogFilter(cfg.PionLog)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "loopback":
		err = runLoopback(ctx, logger, rtcCfg, append(rtcOpts, rtc.WithLoopbackCandidates())...)
	case "room":
		if len(args) < 2 {
			flags.Usage()
			os.Exit(2)
		}
		codec, cerr := cfg.SignalCodec()
		if cerr != nil {
			logger.Error("invalid signaling codec", "codec", cfg.Signal.Codec, "error", cerr)
			os.Exit(1)
		}
		err = runRoom(ctx, logger, args[1:], roomOptions{
			signalURL:       cfg.Signal.URL,
			codec:           codec,
			channelLabel:    cfg.WebRTC.DataChannel,
			rtc:             rtcCfg,
			rtcOptions:      rtcOpts,
			listen:          *listen,
			shutdownTimeout: cfg.HTTP.ShutdownTimeout,
		})
	default:
		flags.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("demo failed", "mode", args[0], "error", err)
		os.Exit(1)
	}
}
