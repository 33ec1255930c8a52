package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec errors.
var (
	ErrUnknownKind    = errors.New("unknown message kind")
	ErrInvalidControl = errors.New("invalid control message")
)

// encMode is the CBOR encoder mode for SLINK messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for SLINK messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeData encodes an opaque payload into a data message envelope.
func EncodeData(payload []byte) ([]byte, error) {
	return Marshal(&DataMessage{
		Kind:    KindData,
		Payload: payload,
	})
}

// DecodeData decodes a data message envelope and returns its payload.
func DecodeData(data []byte) ([]byte, error) {
	var msg DataMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode data message: %w", err)
	}
	if msg.Kind != KindData {
		return nil, fmt.Errorf("%w: kind=%d", ErrUnknownKind, msg.Kind)
	}
	return msg.Payload, nil
}

// EncodeControlMessage encodes a control message (ping/pong/close).
// The envelope kind is set automatically.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: type=%d", ErrInvalidControl, msg.Type)
	}
	msg.Kind = KindControl
	return Marshal(msg)
}

// DecodeControlMessage decodes CBOR bytes into a control message.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	if msg.Kind != KindControl {
		return nil, fmt.Errorf("%w: kind=%d", ErrUnknownKind, msg.Kind)
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: type=%d", ErrInvalidControl, msg.Type)
	}
	return &msg, nil
}

// PeekKind examines CBOR data and returns the message kind without
// decoding the full envelope.
func PeekKind(data []byte) (MessageKind, error) {
	var envelope struct {
		Kind MessageKind `cbor:"1,keyasint"`
	}
	if err := decMode.Unmarshal(data, &envelope); err != nil {
		return KindUnknown, fmt.Errorf("failed to peek message: %w", err)
	}
	switch envelope.Kind {
	case KindData, KindControl:
		return envelope.Kind, nil
	default:
		return KindUnknown, fmt.Errorf("%w: kind=%d", ErrUnknownKind, envelope.Kind)
	}
}
