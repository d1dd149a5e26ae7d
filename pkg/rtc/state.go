package rtc

// PeerConnectionState mirrors RTCPeerConnectionState
type PeerConnectionState int

const (
	PeerConnectionStateUnspecified PeerConnectionState = iota
	PeerConnectionStateNew
	PeerConnectionStateConnecting
	PeerConnectionStateConnected
	PeerConnectionStateDisconnected
	PeerConnectionStateFailed
	PeerConnectionStateClosed
)

var peerConnectionStateNames = map[PeerConnectionState]string{
	PeerConnectionStateNew:          "new",
	PeerConnectionStateConnecting:   "connecting",
	PeerConnectionStateConnected:    "connected",
	PeerConnectionStateDisconnected: "disconnected",
	PeerConnectionStateFailed:       "failed",
	PeerConnectionStateClosed:       "closed",
}

func (s PeerConnectionState) String() string {
	if name, ok := peerConnectionStateNames[s]; ok {
		return name
	}
	return "unspecified"
}

// ParsePeerConnectionState maps the W3C name; anything else is Unspecified.
func ParsePeerConnectionState(s string) PeerConnectionState {
	for state, name := range peerConnectionStateNames {
		if name == s {
			return state
		}
	}
	return PeerConnectionStateUnspecified
}

// DataChannelState mirrors RTCDataChannelState
type DataChannelState int

const (
	DataChannelStateUnspecified DataChannelState = iota
	DataChannelStateConnecting
	DataChannelStateOpen
	DataChannelStateClosing
	DataChannelStateClosed
)

var dataChannelStateNames = map[DataChannelState]string{
	DataChannelStateConnecting: "connecting",
	DataChannelStateOpen:       "open",
	DataChannelStateClosing:    "closing",
	DataChannelStateClosed:     "closed",
}

func (s DataChannelState) String() string {
	if name, ok := dataChannelStateNames[s]; ok {
		return name
	}
	return "unspecified"
}

func ParseDataChannelState(s string) DataChannelState {
	for state, name := range dataChannelStateNames {
		if name == s {
			return state
		}
	}
	return DataChannelStateUnspecified
}

// CandidatePairState mirrors RTCStatsIceCandidatePairState
type CandidatePairState int

const (
	CandidatePairStateUnspecified CandidatePairState = iota
	CandidatePairStateFrozen
	CandidatePairStateWaiting
	CandidatePairStateInProgress
	CandidatePairStateFailed
	CandidatePairStateSucceeded
)

var candidatePairStateNames = map[CandidatePairState]string{
	CandidatePairStateFrozen:     "frozen",
	CandidatePairStateWaiting:    "waiting",
	CandidatePairStateInProgress: "in-progress",
	CandidatePairStateFailed:     "failed",
	CandidatePairStateSucceeded:  "succeeded",
}

func (s CandidatePairState) String() string {
	if name, ok := candidatePairStateNames[s]; ok {
		return name
	}
	return "unspecified"
}

func ParseCandidatePairState(s string) CandidatePairState {
	for state, name := range candidatePairStateNames {
		if name == s {
			return state
		}
	}
	return CandidatePairStateUnspecified
}

// CandidateType mirrors RTCIceCandidateType
type CandidateType int

const (
	CandidateTypeUnspecified CandidateType = iota
	CandidateTypeHost
	CandidateTypeServerReflexive
	CandidateTypePeerReflexive
	CandidateTypeRelay
)

var candidateTypeNames = map[CandidateType]string{
	CandidateTypeHost:            "host",
	CandidateTypeServerReflexive: "srflx",
	CandidateTypePeerReflexive:   "prflx",
	CandidateTypeRelay:           "relay",
}

func (t CandidateType) String() string {
	if name, ok := candidateTypeNames[t]; ok {
		return name
	}
	return "unspecified"
}

func ParseCandidateType(s string) CandidateType {
	for typ, name := range candidateTypeNames {
		if name == s {
			return typ
		}
	}
	return CandidateTypeUnspecified
}
