package main

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/silviot/unirtc/pkg/rtc"
)

const greeting = "Hello!"

// runLoopback connects two peers in this process over a "data" channel and
// returns once each side has heard the other's greeting.
func runLoopback(ctx context.Context, logger *slog.Logger, cfg rtc.Configuration, opts ...rtc.Option) error {
	peer1, err := rtc.NewPeerConnection(ctx, cfg, append([]rtc.Option{rtc.WithLogger(logger.With("peer", "peer1"))}, opts...)...)
	if err != nil {
		return fmt.Errorf("peer1: %w", err)
	}
	defer peer1.Close(context.Background())

	peer2, err := rtc.NewPeerConnection(ctx, cfg, append([]rtc.Option{rtc.WithLogger(logger.With("peer", "peer2"))}, opts...)...)
	if err != nil {
		return fmt.Errorf("peer2: %w", err)
	}
	defer peer2.Close(context.Background())

	heard := make(chan string, 2)

	dc, err := peer1.CreateDataChannel(ctx, "data", rtc.DataChannelInit{})
	if err != nil {
		return err
	}
	greet(logger, "peer1", dc, heard)

	peer2.OnDataChannel(func(ctx context.Context, dc *rtc.DataChannel) error {
		greet(logger, "peer2", dc, heard)
		return nil
	})

	peer1Ready := make(chan struct{})
	peer2Ready := make(chan struct{})
	exchangeCandidates(logger, "peer1", peer1, peer2, peer2Ready)
	exchangeCandidates(logger, "peer2", peer2, peer1, peer1Ready)

	offer, err := peer1.CreateOffer(ctx)
	if err != nil {
		return err
	}
	if err := peer1.SetLocalDescription(ctx, offer); err != nil {
		return err
	}
	if err := peer2.SetRemoteDescription(ctx, offer); err != nil {
		return err
	}
	close(peer2Ready)

	answer, err := peer2.CreateAnswer(ctx)
	if err != nil {
		return err
	}
	if err := peer2.SetLocalDescription(ctx, answer); err != nil {
		return err
	}
	if err := peer1.SetRemoteDescription(ctx, answer); err != nil {
		return err
	}
	close(peer1Ready)

	for i := 0; i < 2; i++ {
		select {
		case <-heard:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// exchangeCandidates forwards peer's candidates to other once other has a
// remote description.
func exchangeCandidates(logger *slog.Logger, name string, peer, other *rtc.PeerConnection, ready <-chan struct{}) {
	peer.OnICECandidate(func(ctx context.Context, c *rtc.IceCandidate) error {
		<-ready
		var init *rtc.IceCandidateInit
		if c != nil {
			i, err := c.ToInit()
			if err != nil {
				logger.Error("failed to parse ice candidate", "peer", name, "error", err)
				return err
			}
			init = &i
		}
		if err := other.AddICECandidate(ctx, init); err != nil {
			logger.Error("failed to add ice candidate", "peer", name, "error", err)
			return err
		}
		return nil
	})
}

// greet sends a greeting once dc opens and logs whatever arrives.
func greet(logger *slog.Logger, name string, dc *rtc.DataChannel, heard chan<- string) {
	dc.OnOpen(func(ctx context.Context) error {
		logger.Info("sending message", "peer", name)
		if err := dc.SendText(ctx, greeting); err != nil {
			logger.Error("failed to send message", "peer", name, "error", err)
			return err
		}
		return nil
	})
	dc.OnMessage(func(ctx context.Context, msg rtc.Message) error {
		text := render(msg.Data)
		logger.Info("received message", "peer", name, "message", text)
		select {
		case heard <- text:
		default:
		}
		return nil
	})
}

func render(data []byte) string {
	if !utf8.Valid(data) {
		return "[binary data]"
	}
	return string(data)
}
