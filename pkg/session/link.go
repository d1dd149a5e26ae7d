package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/silviot/unirtc/pkg/rtc"
)

// maxPendingCandidates bounds candidates held before the remote description.
const maxPendingCandidates = 64

// link is the connection to one remote peer. Remote candidates that arrive
// before the remote description are held and applied once it is set.
type link struct {
	peerID string
	pc     *rtc.PeerConnection
	logger *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []*rtc.IceCandidateInit // nil entry marks end-of-candidates
}

func newLink(peerID string, pc *rtc.PeerConnection, logger *slog.Logger) *link {
	return &link{peerID: peerID, pc: pc, logger: logger}
}

func (l *link) setRemoteDescription(ctx context.Context, desc rtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(ctx, desc); err != nil {
		return err
	}

	l.mu.Lock()
	l.remoteSet = true
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, c := range pending {
		if err := l.pc.AddICECandidate(ctx, c); err != nil {
			l.logger.Debug("failed to add buffered ICE candidate", "error", err)
		}
	}
	if len(pending) > 0 {
		l.logger.Debug("applied buffered ICE candidates", "count", len(pending))
	}
	return nil
}

// addCandidate applies c now or holds it until the remote description is set.
func (l *link) addCandidate(ctx context.Context, c *rtc.IceCandidateInit) error {
	l.mu.Lock()
	if !l.remoteSet {
		if len(l.pending) < maxPendingCandidates {
			l.pending = append(l.pending, c)
		} else {
			l.logger.Warn("dropping ICE candidate, too many pending")
		}
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	return l.pc.AddICECandidate(ctx, c)
}
