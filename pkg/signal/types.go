package signal

import (
	"fmt"

	"github.com/silviot/unirtc/pkg/rtc"
)

// MessageType identifies a signaling message.
//
// The hub opens every session with TypeWelcome: To carries the assigned ID
// and Peers the members already in the room. TypeJoin and TypeLeave announce
// other members (From). A TypeCandidate message with a nil Candidate means
// the sender has finished gathering.
type MessageType string

const (
	TypeWelcome   MessageType = "welcome"
	TypeJoin      MessageType = "join"
	TypeLeave     MessageType = "leave"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	TypeError     MessageType = "error"
)

// Message is the envelope exchanged with the hub. Offer, answer and
// candidate messages need To; the hub fills in From and Room.
type Message struct {
	Type        MessageType           `json:"type"`
	From        string                `json:"from,omitempty"`
	To          string                `json:"to,omitempty"`
	Room        string                `json:"room,omitempty"`
	Peers       []string              `json:"peers,omitempty"`
	Description *Description          `json:"description,omitempty"`
	Candidate   *rtc.IceCandidateInit `json:"candidate,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// routed reports whether the hub forwards m to a single peer.
func (m Message) routed() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

// Description is the wire form of an rtc.SessionDescription, matching the
// browser's RTCSessionDescriptionInit.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// NewDescription converts a session description for the wire.
func NewDescription(d rtc.SessionDescription) *Description {
	return &Description{Type: d.Type().String(), SDP: d.SDP()}
}

// SessionDescription validates d and converts it back.
func (d *Description) SessionDescription() (rtc.SessionDescription, error) {
	if d == nil {
		return rtc.SessionDescription{}, fmt.Errorf("missing description")
	}
	typ, err := rtc.ParseSDPType(d.Type)
	if err != nil {
		return rtc.SessionDescription{}, err
	}
	return rtc.NewSessionDescription(typ, d.SDP)
}
