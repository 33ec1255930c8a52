// Package wire defines the CBOR message envelope carried inside SLINK
// transport frames.
//
// Every frame body is a CBOR map with integer keys. Key 1 holds the
// message kind and makes data and control traffic unambiguous to peek
// at without a full decode:
//
//	data:    {1: 1, 2: payload-bytes}
//	control: {1: 2, 2: control-type, 3: sequence}
//
// Control messages (ping/pong/close) implement keep-alive probing and
// the orderly close handshake; data messages carry opaque application
// payloads.
package wire
