package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// SDPType tags a session description as an offer or an answer
type SDPType int

const (
	SDPTypeUnspecified SDPType = iota
	SDPTypeOffer
	SDPTypeAnswer
)

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypeAnswer:
		return "answer"
	default:
		return "unspecified"
	}
}

func ParseSDPType(s string) (SDPType, error) {
	switch s {
	case "offer":
		return SDPTypeOffer, nil
	case "answer":
		return SDPTypeAnswer, nil
	}
	return SDPTypeUnspecified, fmt.Errorf("unsupported sdp type %q", s)
}

// SessionDescription is an immutable offer or answer. The zero value is not
// a valid description; build one with Offer, Answer or NewSessionDescription.
type SessionDescription struct {
	typ SDPType
	sdp string
}

// Offer builds an offer from raw SDP text.
func Offer(raw string) (SessionDescription, error) {
	return NewSessionDescription(SDPTypeOffer, raw)
}

// Answer builds an answer from raw SDP text.
func Answer(raw string) (SessionDescription, error) {
	return NewSessionDescription(SDPTypeAnswer, raw)
}

// NewSessionDescription checks that raw is well-formed SDP. The reason for a
// rejection is not reported.
func NewSessionDescription(typ SDPType, raw string) (SessionDescription, error) {
	if typ != SDPTypeOffer && typ != SDPTypeAnswer {
		return SessionDescription{}, ErrSessionDescription
	}
	if err := validateSDP(raw); err != nil {
		return SessionDescription{}, ErrSessionDescription
	}
	return SessionDescription{typ: typ, sdp: raw}, nil
}

// SDP returns the raw SDP text, unchanged.
func (d SessionDescription) SDP() string {
	return d.sdp
}

func (d SessionDescription) Type() SDPType {
	return d.typ
}

// IsZero reports whether d was never built.
func (d SessionDescription) IsZero() bool {
	return d.typ == SDPTypeUnspecified
}

var errEmptySDP = errors.New("empty sdp")

func validateSDP(raw string) error {
	// the parser accepts an empty document
	if strings.TrimSpace(raw) == "" {
		return errEmptySDP
	}
	var parsed sdp.SessionDescription
	return parsed.Unmarshal([]byte(raw))
}
