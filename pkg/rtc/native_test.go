//go:build !js

package rtc

import (
	"errors"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
)

func strPtr(s string) *string { return &s }

func TestConfigurationToNative(t *testing.T) {
	cfg := Configuration{
		IceServers: []IceServer{
			{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
			{
				URLs:           []string{"turn:turn.example.com:3478?transport=udp"},
				Username:       strPtr("alice"),
				Credential:     strPtr("secret"),
				CredentialType: IceCredentialPassword,
			},
			{URLs: []string{"turns:turn.example.com:5349"}, CredentialType: IceCredentialOAuth},
		},
		IceTransportPolicy: IceTransportPolicyRelay,
	}

	native := cfg.toNative()

	if len(native.ICEServers) != 3 {
		t.Fatalf("ICEServers = %d, want 3", len(native.ICEServers))
	}
	if native.ICETransportPolicy != webrtc.ICETransportPolicyRelay {
		t.Errorf("policy = %v, want relay", native.ICETransportPolicy)
	}

	stun := native.ICEServers[0]
	if len(stun.URLs) != 2 || stun.URLs[1] != "stun:stun1.l.google.com:19302" {
		t.Errorf("stun urls = %v", stun.URLs)
	}
	if stun.Username != "" || stun.Credential != "" {
		t.Errorf("unset username/credential should map to empty, got %q/%v", stun.Username, stun.Credential)
	}
	if stun.CredentialType != webrtc.ICECredentialTypePassword {
		t.Errorf("unspecified credential type = %v, want password", stun.CredentialType)
	}

	turn := native.ICEServers[1]
	if turn.Username != "alice" {
		t.Errorf("username = %q", turn.Username)
	}
	if turn.Credential != "secret" {
		t.Errorf("credential = %v, want %q", turn.Credential, "secret")
	}

	if native.ICEServers[2].CredentialType != webrtc.ICECredentialTypeOauth {
		t.Errorf("credential type = %v, want oauth", native.ICEServers[2].CredentialType)
	}
}

func TestConfigurationToNativeCopiesURLs(t *testing.T) {
	urls := []string{"stun:a.example.com"}
	cfg := Configuration{IceServers: []IceServer{{URLs: urls}}}

	native := cfg.toNative()
	urls[0] = "stun:mutated.example.com"

	if native.ICEServers[0].URLs[0] != "stun:a.example.com" {
		t.Errorf("converted URLs alias the caller's slice: %v", native.ICEServers[0].URLs)
	}
}

func TestNativeCandidateToInit(t *testing.T) {
	c := &IceCandidate{handle: nativeCandidate{c: &webrtc.ICECandidate{
		Foundation: "1",
		Priority:   2130706431,
		Address:    "192.168.1.2",
		Protocol:   webrtc.ICEProtocolUDP,
		Port:       50000,
		Typ:        webrtc.ICECandidateTypeHost,
		Component:  1,
		SDPMid:     "0",
	}}}

	init, err := c.ToInit()
	if err != nil {
		t.Fatalf("ToInit: %v", err)
	}
	if !strings.HasPrefix(init.Candidate, "candidate:") || !strings.Contains(init.Candidate, "typ host") {
		t.Errorf("candidate line = %q", init.Candidate)
	}
	if init.SDPMid == nil || *init.SDPMid != "0" {
		t.Errorf("sdpMid = %v", init.SDPMid)
	}
}

func TestNativeCandidateToInitFailure(t *testing.T) {
	// zero value carries an unknown candidate type
	c := &IceCandidate{handle: nativeCandidate{c: &webrtc.ICECandidate{}}, logger: newTestLogger()}

	if _, err := c.ToInit(); !errors.Is(err, ErrCandidateParse) {
		t.Errorf("error = %v, want ErrCandidateParse", err)
	}

	var missing *IceCandidate
	if _, err := missing.ToInit(); !errors.Is(err, ErrCandidateParse) {
		t.Errorf("nil candidate error = %v, want ErrCandidateParse", err)
	}
}

func TestNativeStatsRecords(t *testing.T) {
	pair := webrtc.ICECandidatePairStats{
		ID:                "pair",
		LocalCandidateID:  "l",
		RemoteCandidateID: "r",
		State:             webrtc.StatsICECandidatePairStateSucceeded,
		Nominated:         true,
		BytesSent:         42,
	}
	local := webrtc.ICECandidateStats{
		ID:            "l",
		Type:          webrtc.StatsTypeLocalCandidate,
		IP:            "127.0.0.1",
		Port:          5000,
		Protocol:      "udp",
		CandidateType: webrtc.ICECandidateTypeHost,
	}

	var records []statsRecord
	for _, s := range []webrtc.Stats{pair, &local, webrtc.CodecStats{ID: "codec"}} {
		if rec, ok := nativeStatsRecord(s); ok {
			records = append(records, rec)
		}
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	report := translateStats(records)
	p, ok := report["pair"].(*CandidatePairStats)
	if !ok || p.State != CandidatePairStateSucceeded || !p.Nominated || p.BytesSent != 42 {
		t.Errorf("pair = %+v", report["pair"])
	}
	l, ok := report["l"].(*LocalCandidateStats)
	if !ok || l.CandidateType != CandidateTypeHost || l.Port != 5000 || l.Address != "127.0.0.1" {
		t.Errorf("local = %+v", report["l"])
	}
}

func TestNativeStateMapping(t *testing.T) {
	tests := []struct {
		in   webrtc.PeerConnectionState
		want PeerConnectionState
	}{
		{webrtc.PeerConnectionStateNew, PeerConnectionStateNew},
		{webrtc.PeerConnectionStateConnecting, PeerConnectionStateConnecting},
		{webrtc.PeerConnectionStateConnected, PeerConnectionStateConnected},
		{webrtc.PeerConnectionStateDisconnected, PeerConnectionStateDisconnected},
		{webrtc.PeerConnectionStateFailed, PeerConnectionStateFailed},
		{webrtc.PeerConnectionStateClosed, PeerConnectionStateClosed},
		{webrtc.PeerConnectionState(0), PeerConnectionStateUnspecified},
	}
	for _, tt := range tests {
		if got := nativePeerConnectionState(tt.in); got != tt.want {
			t.Errorf("%v mapped to %v, want %v", tt.in, got, tt.want)
		}
	}
}
