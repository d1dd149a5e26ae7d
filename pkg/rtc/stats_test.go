package rtc

import "testing"

func TestTranslateStatsKeepsSupportedKinds(t *testing.T) {
	records := []statsRecord{
		{
			"id": "pair1", "type": "candidate-pair",
			"localCandidateId": "local1", "remoteCandidateId": "remote1",
			"state": "succeeded", "nominated": true,
			"bytesSent": float64(1200), "bytesReceived": float64(800),
			"currentRoundTripTime": 0.004,
		},
		{
			"id": "local1", "type": "local-candidate",
			"candidateType": "host", "address": "192.168.1.2",
			"port": float64(50000), "protocol": "udp", "priority": float64(2130706431),
		},
		{
			"id": "remote1", "type": "remote-candidate",
			"candidateType": "srflx", "ip": "203.0.113.9", "port": float64(3478),
		},
		{"id": "transport1", "type": "transport", "bytesSent": float64(10)},
		{"id": "codec1", "type": "codec"},
	}

	report := translateStats(records)
	if len(report) != 3 {
		t.Fatalf("len(report) = %d, want 3: %v", len(report), report)
	}

	pair, ok := report["pair1"].(*CandidatePairStats)
	if !ok {
		t.Fatalf("pair1 is %T", report["pair1"])
	}
	if pair.LocalCandidateID != "local1" || pair.RemoteCandidateID != "remote1" {
		t.Errorf("pair ids = %q/%q", pair.LocalCandidateID, pair.RemoteCandidateID)
	}
	if pair.State != CandidatePairStateSucceeded || !pair.Nominated {
		t.Errorf("pair state = %v nominated = %v", pair.State, pair.Nominated)
	}
	if pair.BytesSent != 1200 || pair.BytesReceived != 800 {
		t.Errorf("pair bytes = %d/%d", pair.BytesSent, pair.BytesReceived)
	}

	local, ok := report["local1"].(*LocalCandidateStats)
	if !ok {
		t.Fatalf("local1 is %T", report["local1"])
	}
	if local.CandidateType != CandidateTypeHost || local.Port != 50000 || local.Address != "192.168.1.2" {
		t.Errorf("local = %+v", local.CandidateStats)
	}
	if local.StatsID() != "local1" {
		t.Errorf("StatsID = %q", local.StatsID())
	}

	remote, ok := report["remote1"].(*RemoteCandidateStats)
	if !ok {
		t.Fatalf("remote1 is %T", report["remote1"])
	}
	if remote.CandidateType != CandidateTypeServerReflexive || remote.Address != "203.0.113.9" {
		t.Errorf("remote = %+v", remote.CandidateStats)
	}

	if got := len(report.CandidatePairs()); got != 1 {
		t.Errorf("CandidatePairs() = %d entries", got)
	}
}

func TestTranslateStatsSkipsIncompleteRecords(t *testing.T) {
	records := []statsRecord{
		// no nominated flag
		{"id": "pair1", "type": "candidate-pair", "localCandidateId": "a", "remoteCandidateId": "b", "state": "waiting"},
		// no candidate type
		{"id": "local1", "type": "local-candidate", "address": "10.0.0.1"},
		// no id
		{"type": "remote-candidate", "candidateType": "relay"},
	}

	if report := translateStats(records); len(report) != 0 {
		t.Errorf("expected empty report, got %v", report)
	}
}

func TestTranslateStatsUnknownEnumValues(t *testing.T) {
	records := []statsRecord{
		{"id": "p", "type": "candidate-pair", "localCandidateId": "a", "remoteCandidateId": "b", "state": "bogus", "nominated": false},
		{"id": "c", "type": "local-candidate", "candidateType": "bogus"},
	}

	report := translateStats(records)
	if pair := report["p"].(*CandidatePairStats); pair.State != CandidatePairStateUnspecified {
		t.Errorf("state = %v, want unspecified", pair.State)
	}
	if cand := report["c"].(*LocalCandidateStats); cand.CandidateType != CandidateTypeUnspecified {
		t.Errorf("candidate type = %v, want unspecified", cand.CandidateType)
	}
}
