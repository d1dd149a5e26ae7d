package rtc

import "log/slog"

// IceCandidateInit is the portable, serializable form of a candidate. It is
// what callers hand to their signaling channel.
type IceCandidateInit struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// IceCandidate is a locally gathered candidate as delivered by
// OnICECandidate. It cannot be built by callers.
type IceCandidate struct {
	handle candidateBackend
	logger *slog.Logger
}

// ToInit converts the candidate into its serializable form.
func (c *IceCandidate) ToInit() (IceCandidateInit, error) {
	if c == nil || c.handle == nil {
		return IceCandidateInit{}, ErrCandidateParse
	}
	init, err := c.handle.toInit()
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("candidate conversion failed", "candidate", c.handle.String(), "error", err)
		}
		return IceCandidateInit{}, ErrCandidateParse
	}
	return init, nil
}

func (c *IceCandidate) String() string {
	if c == nil || c.handle == nil {
		return "<end-of-candidates>"
	}
	return c.handle.String()
}
