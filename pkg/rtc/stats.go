package rtc

// Stats is one entry of a StatsReport: *CandidatePairStats,
// *LocalCandidateStats or *RemoteCandidateStats.
type Stats interface {
	StatsID() string
	isStats()
}

// StatsReport is keyed by stats id. A fresh report is built on every query.
type StatsReport map[string]Stats

type CandidatePairStats struct {
	ID                   string
	LocalCandidateID     string
	RemoteCandidateID    string
	State                CandidatePairState
	Nominated            bool
	BytesSent            uint64
	BytesReceived        uint64
	CurrentRoundTripTime float64 // seconds, 0 when unknown
}

// CandidateStats holds the fields shared by local and remote candidates.
// Everything past CandidateType is best effort.
type CandidateStats struct {
	ID            string
	CandidateType CandidateType
	Address       string
	Port          uint16
	Protocol      string
	Priority      uint32
}

type LocalCandidateStats struct {
	CandidateStats
}

type RemoteCandidateStats struct {
	CandidateStats
}

func (s *CandidatePairStats) StatsID() string { return s.ID }
func (s *CandidateStats) StatsID() string     { return s.ID }

func (*CandidatePairStats) isStats()   {}
func (*LocalCandidateStats) isStats()  {}
func (*RemoteCandidateStats) isStats() {}

// CandidatePairs returns the candidate-pair entries of the report.
func (r StatsReport) CandidatePairs() []*CandidatePairStats {
	var pairs []*CandidatePairStats
	for _, s := range r {
		if pair, ok := s.(*CandidatePairStats); ok {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// statsRecord is a single W3C RTCStats dictionary as either backend sees it.
// Values are string, bool or float64.
type statsRecord map[string]any

func (r statsRecord) str(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}

func (r statsRecord) boolean(key string) (bool, bool) {
	v, ok := r[key].(bool)
	return v, ok
}

func (r statsRecord) number(key string) (float64, bool) {
	v, ok := r[key].(float64)
	return v, ok
}

func (r statsRecord) uint(key string) uint64 {
	v, ok := r.number(key)
	if !ok || v < 0 {
		return 0
	}
	return uint64(v)
}

// statsKeys lists every field the translator reads.
var statsKeys = []string{
	"id", "type",
	"localCandidateId", "remoteCandidateId", "state", "nominated",
	"bytesSent", "bytesReceived", "currentRoundTripTime",
	"candidateType", "address", "ip", "port", "protocol", "priority",
}

// translateStats keeps candidate pairs and candidates. Records of other
// types, and records missing a required field, are dropped.
func translateStats(records []statsRecord) StatsReport {
	report := make(StatsReport, len(records))
	for _, rec := range records {
		id, ok := rec.str("id")
		if !ok || id == "" {
			continue
		}
		typ, _ := rec.str("type")
		switch typ {
		case "candidate-pair":
			if pair, ok := translatePair(id, rec); ok {
				report[id] = pair
			}
		case "local-candidate":
			if cand, ok := translateCandidate(id, rec); ok {
				report[id] = &LocalCandidateStats{CandidateStats: cand}
			}
		case "remote-candidate":
			if cand, ok := translateCandidate(id, rec); ok {
				report[id] = &RemoteCandidateStats{CandidateStats: cand}
			}
		}
	}
	return report
}

func translatePair(id string, rec statsRecord) (*CandidatePairStats, bool) {
	local, ok := rec.str("localCandidateId")
	if !ok {
		return nil, false
	}
	remote, ok := rec.str("remoteCandidateId")
	if !ok {
		return nil, false
	}
	state, ok := rec.str("state")
	if !ok {
		return nil, false
	}
	nominated, ok := rec.boolean("nominated")
	if !ok {
		return nil, false
	}
	rtt, _ := rec.number("currentRoundTripTime")
	return &CandidatePairStats{
		ID:                   id,
		LocalCandidateID:     local,
		RemoteCandidateID:    remote,
		State:                ParseCandidatePairState(state),
		Nominated:            nominated,
		BytesSent:            rec.uint("bytesSent"),
		BytesReceived:        rec.uint("bytesReceived"),
		CurrentRoundTripTime: rtt,
	}, true
}

func translateCandidate(id string, rec statsRecord) (CandidateStats, bool) {
	typ, ok := rec.str("candidateType")
	if !ok {
		return CandidateStats{}, false
	}
	address, ok := rec.str("address")
	if !ok {
		// older browsers only report ip
		address, _ = rec.str("ip")
	}
	protocol, _ := rec.str("protocol")
	port := rec.uint("port")
	if port > 0xffff {
		port = 0
	}
	priority := rec.uint("priority")
	if priority > 0xffffffff {
		priority = 0
	}
	return CandidateStats{
		ID:            id,
		CandidateType: ParseCandidateType(typ),
		Address:       address,
		Port:          uint16(port),
		Protocol:      protocol,
		Priority:      uint32(priority),
	}, true
}
