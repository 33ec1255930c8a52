package wire

// CBOR map keys for message encoding.
// All SLINK messages use integer keys for efficiency.
const (
	// KeyKind distinguishes data from control messages.
	KeyKind = 1

	// KeyPayload holds the opaque payload of a data message.
	KeyPayload = 2

	// KeyControlType holds the control type of a control message.
	KeyControlType = 2

	// KeySequence holds the sequence number of a ping/pong.
	KeySequence = 3
)

// MessageKind distinguishes the two envelope types.
type MessageKind uint8

const (
	// KindUnknown is the zero value; never valid on the wire.
	KindUnknown MessageKind = 0

	// KindData is an opaque application payload.
	KindData MessageKind = 1

	// KindControl is a transport control message.
	KindControl MessageKind = 2
)

// String returns the message kind name.
func (k MessageKind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// DataMessage carries an opaque application payload.
type DataMessage struct {
	Kind    MessageKind `cbor:"1,keyasint"`
	Payload []byte      `cbor:"2,keyasint"`
}

// ControlMessage is a transport control message (ping/pong/close).
type ControlMessage struct {
	Kind     MessageKind        `cbor:"1,keyasint"`
	Type     ControlMessageType `cbor:"2,keyasint"`
	Sequence uint32             `cbor:"3,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose announces an orderly connection close.
	ControlClose ControlMessageType = 3
)

// IsValid returns true for a known control message type.
func (t ControlMessageType) IsValid() bool {
	return t >= ControlPing && t <= ControlClose
}

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "PING"
	case ControlPong:
		return "PONG"
	case ControlClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}
