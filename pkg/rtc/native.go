//go:build !js

package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/silviot/unirtc/pkg/pionlog"
)

// nativePeer drives a pion PeerConnection
type nativePeer struct {
	pc     *webrtc.PeerConnection
	logger *slog.Logger
}

func newPeerBackend(ctx context.Context, cfg Configuration, o *options) (peerBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	factory, err := pionlog.NewFactory(o.logger, o.engineLogFilter)
	if err != nil {
		return nil, fmt.Errorf("engine log filter: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: factory}
	if o.loopbackCandidates {
		se.SetIncludeLoopbackCandidate(true)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(cfg.toNative())
	if err != nil {
		return nil, err
	}
	return &nativePeer{pc: pc, logger: o.logger}, nil
}

func (c Configuration) toNative() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.IceServers))
	for _, s := range c.IceServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:           append([]string(nil), s.URLs...),
			Username:       deref(s.Username),
			Credential:     deref(s.Credential),
			CredentialType: s.CredentialType.toNative(),
		})
	}
	return webrtc.Configuration{
		ICEServers:         servers,
		ICETransportPolicy: c.IceTransportPolicy.toNative(),
	}
}

func (t IceCredentialType) toNative() webrtc.ICECredentialType {
	if t == IceCredentialOAuth {
		return webrtc.ICECredentialTypeOauth
	}
	return webrtc.ICECredentialTypePassword
}

func (p IceTransportPolicy) toNative() webrtc.ICETransportPolicy {
	if p == IceTransportPolicyRelay {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

func nativePeerConnectionState(s webrtc.PeerConnectionState) PeerConnectionState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return PeerConnectionStateNew
	case webrtc.PeerConnectionStateConnecting:
		return PeerConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return PeerConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return PeerConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return PeerConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return PeerConnectionStateClosed
	default:
		return PeerConnectionStateUnspecified
	}
}

func nativeDataChannelState(s webrtc.DataChannelState) DataChannelState {
	switch s {
	case webrtc.DataChannelStateConnecting:
		return DataChannelStateConnecting
	case webrtc.DataChannelStateOpen:
		return DataChannelStateOpen
	case webrtc.DataChannelStateClosing:
		return DataChannelStateClosing
	case webrtc.DataChannelStateClosed:
		return DataChannelStateClosed
	default:
		return DataChannelStateUnspecified
	}
}

var errUnexpectedSDPType = errors.New("unexpected sdp type")

func fromNativeDescription(d webrtc.SessionDescription) (SessionDescription, error) {
	switch d.Type {
	case webrtc.SDPTypeOffer:
		return SessionDescription{typ: SDPTypeOffer, sdp: d.SDP}, nil
	case webrtc.SDPTypeAnswer:
		return SessionDescription{typ: SDPTypeAnswer, sdp: d.SDP}, nil
	}
	return SessionDescription{}, fmt.Errorf("%w: %s", errUnexpectedSDPType, d.Type)
}

func toNativeDescription(d SessionDescription) webrtc.SessionDescription {
	typ := webrtc.SDPTypeOffer
	if d.typ == SDPTypeAnswer {
		typ = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: typ, SDP: d.sdp}
}

func (n *nativePeer) createOffer(ctx context.Context) (SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return SessionDescription{}, err
	}
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return fromNativeDescription(offer)
}

func (n *nativePeer) createAnswer(ctx context.Context) (SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return SessionDescription{}, err
	}
	answer, err := n.pc.CreateAnswer(nil)
	if err != nil {
		return SessionDescription{}, err
	}
	return fromNativeDescription(answer)
}

func (n *nativePeer) setLocalDescription(ctx context.Context, desc SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.pc.SetLocalDescription(toNativeDescription(desc))
}

func (n *nativePeer) setRemoteDescription(ctx context.Context, desc SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.pc.SetRemoteDescription(toNativeDescription(desc))
}

func (n *nativePeer) addICECandidate(ctx context.Context, candidate *IceCandidateInit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// pion treats an empty candidate line as end-of-candidates
	var init webrtc.ICECandidateInit
	if candidate != nil {
		init = webrtc.ICECandidateInit{
			Candidate:     candidate.Candidate,
			SDPMid:        candidate.SDPMid,
			SDPMLineIndex: candidate.SDPMLineIndex,
		}
	}
	return n.pc.AddICECandidate(init)
}

func (n *nativePeer) createDataChannel(ctx context.Context, label string, init DataChannelInit) (channelBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dc, err := n.pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered:        init.Ordered,
		MaxRetransmits: init.MaxRetransmits,
	})
	if err != nil {
		return nil, err
	}
	return &nativeChannel{dc: dc}, nil
}

func (n *nativePeer) stats(ctx context.Context) ([]statsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := n.pc.GetStats()
	records := make([]statsRecord, 0, len(report))
	for _, s := range report {
		if rec, ok := nativeStatsRecord(s); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// nativeStatsRecord flattens the pion structs into W3C dictionaries so both
// backends share one translator.
func nativeStatsRecord(s webrtc.Stats) (statsRecord, bool) {
	switch v := s.(type) {
	case webrtc.ICECandidatePairStats:
		return pairRecord(&v), true
	case *webrtc.ICECandidatePairStats:
		return pairRecord(v), true
	case webrtc.ICECandidateStats:
		return candidateRecord(&v), true
	case *webrtc.ICECandidateStats:
		return candidateRecord(v), true
	}
	return nil, false
}

func pairRecord(s *webrtc.ICECandidatePairStats) statsRecord {
	return statsRecord{
		"id":                   s.ID,
		"type":                 "candidate-pair",
		"localCandidateId":     s.LocalCandidateID,
		"remoteCandidateId":    s.RemoteCandidateID,
		"state":                string(s.State),
		"nominated":            s.Nominated,
		"bytesSent":            float64(s.BytesSent),
		"bytesReceived":        float64(s.BytesReceived),
		"currentRoundTripTime": s.CurrentRoundTripTime,
	}
}

func candidateRecord(s *webrtc.ICECandidateStats) statsRecord {
	return statsRecord{
		"id":            s.ID,
		"type":          string(s.Type),
		"candidateType": s.CandidateType.String(),
		"address":       s.IP,
		"port":          float64(s.Port),
		"protocol":      s.Protocol,
		"priority":      float64(s.Priority),
	}
}

func (n *nativePeer) connectionState() PeerConnectionState {
	return nativePeerConnectionState(n.pc.ConnectionState())
}

func (n *nativePeer) localDescription() (SessionDescription, bool) {
	return describe(n.pc.LocalDescription())
}

func (n *nativePeer) remoteDescription() (SessionDescription, bool) {
	return describe(n.pc.RemoteDescription())
}

func describe(d *webrtc.SessionDescription) (SessionDescription, bool) {
	if d == nil {
		return SessionDescription{}, false
	}
	desc, err := fromNativeDescription(*d)
	if err != nil {
		return SessionDescription{}, false
	}
	return desc, true
}

func (n *nativePeer) close() error {
	return n.pc.Close()
}

func (n *nativePeer) onConnectionStateChange(sink func(PeerConnectionState)) func() {
	n.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		n.logger.Debug("peer connection state changed", "state", state.String())
		sink(nativePeerConnectionState(state))
	})
	return nil
}

func (n *nativePeer) onICECandidate(sink func(candidateBackend)) func() {
	n.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			sink(nil)
			return
		}
		sink(nativeCandidate{c: candidate})
	})
	return nil
}

func (n *nativePeer) onDataChannel(sink func(channelBackend)) func() {
	n.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		sink(&nativeChannel{dc: dc})
	})
	return nil
}

type nativeCandidate struct {
	c *webrtc.ICECandidate
}

func (n nativeCandidate) toInit() (IceCandidateInit, error) {
	// ToJSON swallows conversion errors, ToICE reports them
	if _, err := n.c.ToICE(); err != nil {
		return IceCandidateInit{}, err
	}
	j := n.c.ToJSON()
	init := IceCandidateInit{
		Candidate:     j.Candidate,
		SDPMLineIndex: j.SDPMLineIndex,
	}
	if j.SDPMid != nil && *j.SDPMid != "" {
		init.SDPMid = j.SDPMid
	}
	return init, nil
}

func (n nativeCandidate) String() string {
	return n.c.String()
}

// nativeChannel wraps a pion DataChannel
type nativeChannel struct {
	dc *webrtc.DataChannel
}

func (n *nativeChannel) label() string {
	return n.dc.Label()
}

func (n *nativeChannel) readyState() DataChannelState {
	return nativeDataChannelState(n.dc.ReadyState())
}

func (n *nativeChannel) send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.dc.Send(data)
}

func (n *nativeChannel) sendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.dc.SendText(text)
}

func (n *nativeChannel) close() error {
	return n.dc.Close()
}

func (n *nativeChannel) onOpen(sink func()) func() {
	n.dc.OnOpen(sink)
	return nil
}

func (n *nativeChannel) onClose(sink func()) func() {
	n.dc.OnClose(sink)
	return nil
}

func (n *nativeChannel) onMessage(sink func(Message)) func() {
	n.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		sink(Message{Data: msg.Data, IsText: msg.IsString})
	})
	return nil
}
