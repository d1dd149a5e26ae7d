package signal

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
)

// Websocket subprotocols, in the hub's order of preference.
const (
	SubprotocolCBOR = "unirtc.cbor"
	SubprotocolJSON = "unirtc.json"
)

// Codec frames messages for one websocket subprotocol.
type Codec interface {
	Subprotocol() string
	// FrameType is websocket.TextMessage or websocket.BinaryMessage.
	FrameType() int
	Marshal(msg Message) ([]byte, error)
	Unmarshal(data []byte) (Message, error)
}

var (
	JSONCodec Codec = jsonCodec{}
	CBORCodec Codec = cborCodec{}
)

// CodecFor returns the codec for a negotiated subprotocol. Peers that
// negotiated nothing speak JSON.
func CodecFor(subprotocol string) (Codec, error) {
	switch subprotocol {
	case "", SubprotocolJSON:
		return JSONCodec, nil
	case SubprotocolCBOR:
		return CBORCodec, nil
	}
	return nil, fmt.Errorf("unsupported subprotocol %q", subprotocol)
}

type jsonCodec struct{}

func (jsonCodec) Subprotocol() string { return SubprotocolJSON }
func (jsonCodec) FrameType() int      { return websocket.TextMessage }

func (jsonCodec) Marshal(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode json message: %w", err)
	}
	return msg, nil
}

// Core deterministic encoding: the same message always yields the same bytes.
// Field names come from the json tags.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("signal: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("signal: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) Subprotocol() string { return SubprotocolCBOR }
func (cborCodec) FrameType() int      { return websocket.BinaryMessage }

func (cborCodec) Marshal(msg Message) ([]byte, error) {
	return cborEnc.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte) (Message, error) {
	var msg Message
	if err := cborDec.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode cbor message: %w", err)
	}
	return msg, nil
}
