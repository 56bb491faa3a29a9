// Package protocol implements the wire-level conventions shared by the game
// relays: the REGISTER handshake prefix peers send to claim a relay slot, and
// the big-endian 16-bit sequence numbers carried in the first two bytes of
// UDP payloads. All sequence arithmetic is modular over 2^16.
package protocol

import "bytes"

// RegisterPrefix is the 8-byte ASCII prefix a peer sends to claim a relay slot.
var RegisterPrefix = []byte("REGISTER")

// UDPHeaderRoom is the number of leading bytes a UDP client may prepend to
// its registration datagram before the REGISTER prefix.
const UDPHeaderRoom = 2

// IsTCPRegister reports whether a TCP handshake payload is a registration.
// TCP only accepts the prefix at offset 0; trailing bytes are permitted and
// discarded by the caller.
func IsTCPRegister(payload []byte) bool {
	return bytes.HasPrefix(payload, RegisterPrefix)
}

// IsUDPRegister reports whether a datagram is a UDP registration: the
// REGISTER prefix at offset 0, or at offset 2 to allow a 2-byte header.
func IsUDPRegister(payload []byte) bool {
	if bytes.HasPrefix(payload, RegisterPrefix) {
		return true
	}
	return len(payload) > UDPHeaderRoom && bytes.HasPrefix(payload[UDPHeaderRoom:], RegisterPrefix)
}
