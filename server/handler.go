package server

import "github.com/relaynet-go/relaynet/conn"

// Handler is the fixed set of server lifecycle and per-connection
// hooks, selected at construction time rather than through build tags:
// embed NoopHandler and override only what's needed.
type Handler interface {
	// OnBind is called once the socket is bound and the tick loop is
	// about to start.
	OnBind(localAddr string)
	// OnShutdown is called once the tick loop has exited.
	OnShutdown()
	// OnTick is called once per server tick, before any connection is
	// sent to, with the tick's ordinal within the current second and
	// the live connection table (keyed by identifier), mirroring the
	// original tick_connections(server, connections) hook. The map is
	// only valid for the duration of the call.
	OnTick(tick int, conns map[uint32]*conn.Connection)
	// OnConnection fires on the tick a connection leaves Connecting,
	// and again on every subsequent tick it remains established.
	OnConnection(id uint32)
	// OnConnectionLost fires when a connection is declared Lost.
	OnConnectionLost(id uint32)
	// OnConnectionClosed fires when a connection settles into Closed.
	OnConnectionClosed(id uint32)
	// OnPacketLost fires once per datagram judged lost, carrying the
	// serialized Reliable/Ordered messages it contained.
	OnPacketLost(id uint32, messages []byte)
	// OnPacketCompress and OnPacketDecompress return the hooks to
	// install on a newly created connection; either may be nil to use
	// the identity transform.
	OnPacketCompress() conn.Compressor
	OnPacketDecompress() conn.Decompressor
}

// NoopHandler implements Handler with no-ops, meant to be embedded so
// callers only override what they care about.
type NoopHandler struct{}

func (NoopHandler) OnBind(string)                              {}
func (NoopHandler) OnShutdown()                                {}
func (NoopHandler) OnTick(int, map[uint32]*conn.Connection)    {}
func (NoopHandler) OnConnection(uint32)                        {}
func (NoopHandler) OnConnectionLost(uint32)             {}
func (NoopHandler) OnConnectionClosed(uint32)           {}
func (NoopHandler) OnPacketLost(uint32, []byte)         {}
func (NoopHandler) OnPacketCompress() conn.Compressor   { return nil }
func (NoopHandler) OnPacketDecompress() conn.Decompressor { return nil }
