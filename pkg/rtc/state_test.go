package rtc

import "testing"

func TestStateNamesRoundTrip(t *testing.T) {
	for state := range peerConnectionStateNames {
		if got := ParsePeerConnectionState(state.String()); got != state {
			t.Errorf("peer connection state %v round-tripped to %v", state, got)
		}
	}
	for state := range dataChannelStateNames {
		if got := ParseDataChannelState(state.String()); got != state {
			t.Errorf("data channel state %v round-tripped to %v", state, got)
		}
	}
	for state := range candidatePairStateNames {
		if got := ParseCandidatePairState(state.String()); got != state {
			t.Errorf("candidate pair state %v round-tripped to %v", state, got)
		}
	}
	for typ := range candidateTypeNames {
		if got := ParseCandidateType(typ.String()); got != typ {
			t.Errorf("candidate type %v round-tripped to %v", typ, got)
		}
	}
}

func TestUnknownStateNames(t *testing.T) {
	if got := ParsePeerConnectionState("exploded"); got != PeerConnectionStateUnspecified {
		t.Errorf("got %v", got)
	}
	if got := ParseCandidatePairState("in progress"); got != CandidatePairStateUnspecified {
		t.Errorf("got %v", got)
	}
	if got := ParseCandidateType(""); got != CandidateTypeUnspecified {
		t.Errorf("got %v", got)
	}
}

func TestParseConfigurationEnums(t *testing.T) {
	if p, err := ParseIceTransportPolicy("relay"); err != nil || p != IceTransportPolicyRelay {
		t.Errorf("relay = %v, %v", p, err)
	}
	if p, err := ParseIceTransportPolicy(""); err != nil || p != IceTransportPolicyAll {
		t.Errorf("empty = %v, %v", p, err)
	}
	if _, err := ParseIceTransportPolicy("none"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if c, err := ParseIceCredentialType("oauth"); err != nil || c != IceCredentialOAuth {
		t.Errorf("oauth = %v, %v", c, err)
	}
	if _, err := ParseIceCredentialType("token"); err == nil {
		t.Error("expected error for unknown credential type")
	}
}
