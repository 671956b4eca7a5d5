package conn

import (
	"encoding/binary"
	"net"

	"github.com/rs/xid"
)

// NewClientID mints a collision-resistant 32-bit connection identifier
// for a client-initiated connection, folding a 12-byte xid down (high
// 4 bytes XORed against the low 8) instead of a bare math/rand call.
// The fold keeps ids distinct across calls and restarts in practice but
// does not keep them ordered.
func NewClientID() uint32 {
	raw := xid.New().Bytes()
	hi := binary.BigEndian.Uint32(raw[0:4])
	lo := binary.BigEndian.Uint64(raw[4:12])
	return hi ^ uint32(lo) ^ uint32(lo>>32)
}

// NewClient constructs a Connection for the client side of the
// handshake: the identifier is drawn locally at construction, per the
// data model's "or at client start" lifecycle, rather than learned
// from an inbound packet the way the server side picks up whatever id
// arrives with the first datagram from a new peer.
func NewClient(peerAddr, localAddr net.Addr, config Config) *Connection {
	return New(NewClientID(), config, peerAddr, localAddr)
}
