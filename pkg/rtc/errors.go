package rtc

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies failures reported by this package
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPeerCreation
	KindOfferCreation
	KindAnswerCreation
	KindDescriptionSet
	KindCandidateAdd
	KindCandidateParse
	KindChannelCreation
	KindSendFailure
	KindSessionDescription
	KindClose
	KindStatsFetch
)

func (k ErrorKind) String() string {
	switch k {
	case KindPeerCreation:
		return "peer-creation"
	case KindOfferCreation:
		return "offer-creation"
	case KindAnswerCreation:
		return "answer-creation"
	case KindDescriptionSet:
		return "description-set"
	case KindCandidateAdd:
		return "candidate-add"
	case KindCandidateParse:
		return "candidate-parse"
	case KindChannelCreation:
		return "channel-creation"
	case KindSendFailure:
		return "send-failure"
	case KindSessionDescription:
		return "session-description"
	case KindClose:
		return "close"
	case KindStatsFetch:
		return "stats-fetch"
	default:
		return "unknown"
	}
}

// Error is the only error type surfaced by facade operations.
// Backend detail is logged, never carried.
type Error struct {
	Kind ErrorKind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrPeerCreation         = &Error{Kind: KindPeerCreation, msg: "rtc: failed to create peer connection"}
	ErrOfferCreation        = &Error{Kind: KindOfferCreation, msg: "rtc: failed to create offer"}
	ErrAnswerCreation       = &Error{Kind: KindAnswerCreation, msg: "rtc: failed to create answer"}
	ErrSetLocalDescription  = &Error{Kind: KindDescriptionSet, msg: "rtc: failed to set local description"}
	ErrSetRemoteDescription = &Error{Kind: KindDescriptionSet, msg: "rtc: failed to set remote description"}
	ErrCandidateAdd         = &Error{Kind: KindCandidateAdd, msg: "rtc: failed to add ICE candidate"}
	ErrCandidateParse       = &Error{Kind: KindCandidateParse, msg: "rtc: failed to parse ICE candidate"}
	ErrChannelCreation      = &Error{Kind: KindChannelCreation, msg: "rtc: failed to create data channel"}
	ErrSendFailure          = &Error{Kind: KindSendFailure, msg: "rtc: failed to send on data channel"}
	ErrSessionDescription   = &Error{Kind: KindSessionDescription, msg: "rtc: invalid session description"}
	ErrClose                = &Error{Kind: KindClose, msg: "rtc: failed to close"}
	ErrStatsFetch           = &Error{Kind: KindStatsFetch, msg: "rtc: failed to fetch stats"}
)

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// canceled wraps sentinel together with the context's own error so callers
// can match on either.
func canceled(ctx context.Context, sentinel *Error) error {
	return fmt.Errorf("%w: %w", sentinel, ctx.Err())
}
