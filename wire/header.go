package wire

import "encoding/binary"

// HeaderSize is the fixed, big-endian packet header length in bytes.
const HeaderSize = 14

// CloseRemoteAck and CloseLocalSeq are the reserved header values that
// mark a packet as a close marker rather than ordinary data framing.
// A normal packet is never built with RemoteAck==128 and LocalSeq==0
// together with the CloseMarkerPayload, so the combination is safe to
// repurpose.
const (
	CloseLocalSeq  uint8 = 0
	CloseRemoteAck uint8 = 128
)

// CloseMarkerPayload is the constant body of a close marker packet.
var CloseMarkerPayload = [4]byte{0x55, 0x55, 0x55, 0x55}

// Header is the 14-byte fixed packet header.
type Header struct {
	ProtocolTag      [4]byte
	ConnectionID     uint32
	LocalSeq         uint8
	RemoteAck        uint8
	AckBitfield      uint32
}

// Encode writes the header in its wire layout: protocol tag (4),
// connection id (4), local seq (1), remote ack (1), ack bitfield (4).
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.ProtocolTag[:])
	binary.BigEndian.PutUint32(buf[4:8], h.ConnectionID)
	buf[8] = h.LocalSeq
	buf[9] = h.RemoteAck
	binary.BigEndian.PutUint32(buf[10:14], h.AckBitfield)
	return buf
}

// DecodeHeader parses a header from the front of data. It returns
// ok=false if data is shorter than HeaderSize or the protocol tag does
// not match — both are silently-dropped malformed packets per the
// error handling policy, never an error return.
func DecodeHeader(data []byte, protocolTag [4]byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	if data[0] != protocolTag[0] || data[1] != protocolTag[1] ||
		data[2] != protocolTag[2] || data[3] != protocolTag[3] {
		return Header{}, false
	}
	h := Header{
		ConnectionID: binary.BigEndian.Uint32(data[4:8]),
		LocalSeq:     data[8],
		RemoteAck:    data[9],
		AckBitfield:  binary.BigEndian.Uint32(data[10:14]),
	}
	copy(h.ProtocolTag[:], data[0:4])
	return h, true
}

// ConnectionIDFromPacket reads bytes 4-7 without validating the rest
// of the header; used by the server multiplexer to route a datagram
// before a Connection exists to decode it properly.
func ConnectionIDFromPacket(data []byte) (uint32, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	return binary.BigEndian.Uint32(data[4:8]), true
}

// IsCloseMarker reports whether a decoded header plus trailing body
// is the reserved close marker.
func IsCloseMarker(h Header, body []byte) bool {
	if h.LocalSeq != CloseLocalSeq || h.RemoteAck != CloseRemoteAck {
		return false
	}
	if len(body) != len(CloseMarkerPayload) {
		return false
	}
	for i, b := range CloseMarkerPayload {
		if body[i] != b {
			return false
		}
	}
	return true
}

// EncodeCloseMarker builds a full close-marker packet for the given
// protocol tag and connection id.
func EncodeCloseMarker(protocolTag [4]byte, connID uint32) []byte {
	h := Header{
		ProtocolTag:  protocolTag,
		ConnectionID: connID,
		LocalSeq:     CloseLocalSeq,
		RemoteAck:    CloseRemoteAck,
	}
	buf := h.Encode()
	return append(buf, CloseMarkerPayload[:]...)
}
