package conn

import "time"

// Config holds the per-connection parameters from the data model: the
// wire protocol tag, pacing, and every timing threshold that drives
// the state machine and congestion toggle. It is immutable for the
// lifetime it's attached to a Connection; replacing it (SetConfig)
// reinitializes internal state derived from it.
type Config struct {
	// ProtocolTag is the 4-byte value every packet header must carry
	// to be accepted by DecodeHeader.
	ProtocolTag [4]byte

	// SendRate is the target outbound packets per second; it governs
	// tick cadence in the server multiplexer, not the Connection
	// itself.
	SendRate int

	// PacketMaxSize bounds the total encoded datagram size, header
	// included.
	PacketMaxSize int

	// PacketDropThreshold is how long an unacknowledged datagram may
	// sit in the ledger before it's judged lost.
	PacketDropThreshold time.Duration

	// ConnectionDropThreshold is how long a connection may go without
	// any inbound packet before it's judged Lost.
	ConnectionDropThreshold time.Duration

	// ConnectionClosingThreshold is how long a locally-Closing
	// connection keeps emitting close markers before settling into
	// Closed.
	ConnectionClosingThreshold time.Duration

	// CongestionRTTThreshold is the smoothed RTT above which the
	// connection is considered congested.
	CongestionRTTThreshold time.Duration

	// CongestionDivider throttles send pacing while congested: only
	// 1 of every N ticks sends.
	CongestionDivider int
}

// DefaultConfig returns the representative configuration used by the
// protocol's own test suite.
func DefaultConfig() Config {
	return Config{
		ProtocolTag:                [4]byte{0x01, 0x02, 0x03, 0x04},
		SendRate:                   30,
		PacketMaxSize:              1400,
		PacketDropThreshold:        1000 * time.Millisecond,
		ConnectionDropThreshold:    1000 * time.Millisecond,
		ConnectionClosingThreshold: 100 * time.Millisecond,
		CongestionRTTThreshold:     250 * time.Millisecond,
		CongestionDivider:          2,
	}
}
