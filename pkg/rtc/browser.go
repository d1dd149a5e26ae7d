//go:build js && wasm

package rtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"syscall/js"

	"github.com/pion/ice/v4"
)

var errNoPeerConnection = errors.New("RTCPeerConnection is not available")

// browserPeer drives the host's RTCPeerConnection
type browserPeer struct {
	pc     js.Value
	logger *slog.Logger
}

func newPeerBackend(ctx context.Context, cfg Configuration, o *options) (_ peerBackend, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctor := js.Global().Get("RTCPeerConnection")
	if isNullish(ctor) {
		return nil, errNoPeerConnection
	}
	return &browserPeer{pc: ctor.New(cfg.toJS()), logger: o.logger}, nil
}

// toJS builds an RTCConfiguration dictionary. Unset username and credential
// are omitted; credentialType is deprecated in browsers and never sent.
func (c Configuration) toJS() js.Value {
	servers := make([]any, 0, len(c.IceServers))
	for _, s := range c.IceServers {
		entry := map[string]any{"urls": stringsToJS(s.URLs)}
		if s.Username != nil {
			entry["username"] = *s.Username
		}
		if s.Credential != nil {
			entry["credential"] = *s.Credential
		}
		servers = append(servers, entry)
	}
	return js.ValueOf(map[string]any{
		"iceServers":         servers,
		"iceTransportPolicy": c.IceTransportPolicy.String(),
	})
}

func descriptionToJS(d SessionDescription) js.Value {
	return js.ValueOf(map[string]any{
		"type": d.typ.String(),
		"sdp":  d.sdp,
	})
}

func descriptionFromJS(v js.Value) (SessionDescription, error) {
	if isNullish(v) {
		return SessionDescription{}, errors.New("no session description")
	}
	typ, err := ParseSDPType(v.Get("type").String())
	if err != nil {
		return SessionDescription{}, err
	}
	return SessionDescription{typ: typ, sdp: v.Get("sdp").String()}, nil
}

func (b *browserPeer) call(ctx context.Context, method string, args ...any) (_ js.Value, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return js.Undefined(), err
	}
	return awaitPromise(ctx, b.pc.Call(method, args...))
}

func (b *browserPeer) createOffer(ctx context.Context) (SessionDescription, error) {
	v, err := b.call(ctx, "createOffer")
	if err != nil {
		return SessionDescription{}, err
	}
	return descriptionFromJS(v)
}

func (b *browserPeer) createAnswer(ctx context.Context) (SessionDescription, error) {
	v, err := b.call(ctx, "createAnswer")
	if err != nil {
		return SessionDescription{}, err
	}
	return descriptionFromJS(v)
}

func (b *browserPeer) setLocalDescription(ctx context.Context, desc SessionDescription) error {
	_, err := b.call(ctx, "setLocalDescription", descriptionToJS(desc))
	return err
}

func (b *browserPeer) setRemoteDescription(ctx context.Context, desc SessionDescription) error {
	_, err := b.call(ctx, "setRemoteDescription", descriptionToJS(desc))
	return err
}

func (b *browserPeer) addICECandidate(ctx context.Context, candidate *IceCandidateInit) error {
	if candidate == nil {
		// no argument signals end-of-candidates
		_, err := b.call(ctx, "addIceCandidate")
		return err
	}
	init := map[string]any{"candidate": candidate.Candidate}
	if candidate.SDPMid != nil {
		init["sdpMid"] = *candidate.SDPMid
	}
	if candidate.SDPMLineIndex != nil {
		init["sdpMLineIndex"] = int(*candidate.SDPMLineIndex)
	}
	_, err := b.call(ctx, "addIceCandidate", js.ValueOf(init))
	return err
}

func (b *browserPeer) createDataChannel(ctx context.Context, label string, init DataChannelInit) (_ channelBackend, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := map[string]any{}
	if init.Ordered != nil {
		opts["ordered"] = *init.Ordered
	}
	if init.MaxRetransmits != nil {
		opts["maxRetransmits"] = int(*init.MaxRetransmits)
	}
	dc := b.pc.Call("createDataChannel", label, js.ValueOf(opts))
	return newBrowserChannel(dc), nil
}

func (b *browserPeer) stats(ctx context.Context) (_ []statsRecord, err error) {
	report, err := b.call(ctx, "getStats")
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()

	var records []statsRecord
	each := js.FuncOf(func(this js.Value, args []js.Value) any {
		records = append(records, statsRecordFromJS(firstArg(args)))
		return nil
	})
	defer each.Release()
	// forEach runs synchronously
	report.Call("forEach", each)
	return records, nil
}

func statsRecordFromJS(v js.Value) statsRecord {
	rec := statsRecord{}
	if v.Type() != js.TypeObject {
		return rec
	}
	for _, key := range statsKeys {
		field := v.Get(key)
		switch field.Type() {
		case js.TypeString:
			rec[key] = field.String()
		case js.TypeNumber:
			rec[key] = field.Float()
		case js.TypeBoolean:
			rec[key] = field.Bool()
		}
	}
	return rec
}

func (b *browserPeer) connectionState() PeerConnectionState {
	return ParsePeerConnectionState(b.pc.Get("connectionState").String())
}

func (b *browserPeer) localDescription() (SessionDescription, bool) {
	d, err := descriptionFromJS(b.pc.Get("localDescription"))
	return d, err == nil
}

func (b *browserPeer) remoteDescription() (SessionDescription, bool) {
	d, err := descriptionFromJS(b.pc.Get("remoteDescription"))
	return d, err == nil
}

func (b *browserPeer) close() (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	b.pc.Call("close")
	return nil
}

func (b *browserPeer) onConnectionStateChange(sink func(PeerConnectionState)) func() {
	return setListener(b.pc, "onconnectionstatechange", func(this js.Value, args []js.Value) any {
		sink(b.connectionState())
		return nil
	})
}

func (b *browserPeer) onICECandidate(sink func(candidateBackend)) func() {
	return setListener(b.pc, "onicecandidate", func(this js.Value, args []js.Value) any {
		c := firstArg(args).Get("candidate")
		if isNullish(c) {
			sink(nil)
			return nil
		}
		sink(browserCandidate{v: c})
		return nil
	})
}

func (b *browserPeer) onDataChannel(sink func(channelBackend)) func() {
	return setListener(b.pc, "ondatachannel", func(this js.Value, args []js.Value) any {
		sink(newBrowserChannel(firstArg(args).Get("channel")))
		return nil
	})
}

// browserCandidate wraps an RTCIceCandidate
type browserCandidate struct {
	v js.Value
}

func (b browserCandidate) toInit() (IceCandidateInit, error) {
	line := b.v.Get("candidate")
	if line.Type() != js.TypeString {
		return IceCandidateInit{}, errors.New("candidate line missing")
	}
	raw := line.String()
	// an empty line is the per-media end marker and has nothing to parse
	if raw != "" {
		if _, err := ice.UnmarshalCandidate(strings.TrimPrefix(raw, "candidate:")); err != nil {
			return IceCandidateInit{}, fmt.Errorf("parse candidate: %w", err)
		}
	}
	init := IceCandidateInit{Candidate: raw}
	if mid := b.v.Get("sdpMid"); mid.Type() == js.TypeString && mid.String() != "" {
		s := mid.String()
		init.SDPMid = &s
	}
	if idx := b.v.Get("sdpMLineIndex"); idx.Type() == js.TypeNumber {
		n := uint16(idx.Int())
		init.SDPMLineIndex = &n
	}
	return init, nil
}

func (b browserCandidate) String() string {
	return b.v.Get("candidate").String()
}

// browserChannel wraps an RTCDataChannel
type browserChannel struct {
	dc js.Value
}

func newBrowserChannel(dc js.Value) *browserChannel {
	// deliver binary payloads as ArrayBuffer rather than Blob
	dc.Set("binaryType", "arraybuffer")
	return &browserChannel{dc: dc}
}

func (b *browserChannel) label() string {
	return b.dc.Get("label").String()
}

func (b *browserChannel) readyState() DataChannelState {
	return ParseDataChannelState(b.dc.Get("readyState").String())
}

var errChannelNotOpen = errors.New("data channel is not open")

func (b *browserChannel) send(ctx context.Context, data []byte) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.readyState() != DataChannelStateOpen {
		return errChannelNotOpen
	}
	buf := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(buf, data)
	b.dc.Call("send", buf)
	return nil
}

func (b *browserChannel) sendText(ctx context.Context, text string) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.readyState() != DataChannelStateOpen {
		return errChannelNotOpen
	}
	b.dc.Call("send", text)
	return nil
}

func (b *browserChannel) close() (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = recoveryToError(e)
		}
	}()
	b.dc.Call("close")
	return nil
}

func (b *browserChannel) onOpen(sink func()) func() {
	return setListener(b.dc, "onopen", func(this js.Value, args []js.Value) any {
		sink()
		return nil
	})
}

func (b *browserChannel) onClose(sink func()) func() {
	return setListener(b.dc, "onclose", func(this js.Value, args []js.Value) any {
		sink()
		return nil
	})
}

func (b *browserChannel) onMessage(sink func(Message)) func() {
	return setListener(b.dc, "onmessage", func(this js.Value, args []js.Value) any {
		data := firstArg(args).Get("data")
		if data.Type() == js.TypeString {
			// JS strings are UTF-16; converting yields UTF-8 bytes
			sink(Message{Data: []byte(data.String()), IsText: true})
			return nil
		}
		view := js.Global().Get("Uint8Array").New(data)
		buf := make([]byte, view.Get("length").Int())
		js.CopyBytesToGo(buf, view)
		sink(Message{Data: buf})
		return nil
	})
}
