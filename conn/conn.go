// Package conn implements the per-peer connection state machine and
// its datagram framing: sequence assignment, cumulative+bitfield
// acknowledgment, in-flight loss detection, message queuing and
// segmentation, ordered reassembly, RTT estimation, congestion
// signaling, and the connect/close handshake. This is the core
// engineering the rest of the module composes.
package conn

import (
	"net"
	"time"

	"github.com/relaynet-go/relaynet/estimator"
	"github.com/relaynet-go/relaynet/ledger"
	"github.com/relaynet-go/relaynet/queue"
	"github.com/relaynet-go/relaynet/wire"
)

// Compressor wraps the full packet (header bytes unchanged, payload
// appended) after serialization and before the socket send. An
// identity compressor is used when none is supplied.
type Compressor func(header, payload []byte) []byte

// Decompressor restores the payload after the header is stripped and
// before message records are parsed. An identity decompressor is used
// when none is supplied.
type Decompressor func(payload []byte) []byte

// Connection is the reliability engine for a single peer, riding atop
// raw, unreliable datagrams.
type Connection struct {
	id     uint32
	config Config

	peerAddr  net.Addr
	localAddr net.Addr

	state State

	localSeq uint8
	out      *queue.Outbound
	ledger   *ledger.Ledger
	reorder  *queue.Reorder
	inbox    [][]byte

	receivedBits    [256]bool
	hasNewest       bool
	newestRemoteSeq uint8

	rtt       estimator.RTT
	loss      *estimator.Loss
	congested bool

	lastReceive  time.Time
	closingSince time.Time

	compress   Compressor
	decompress Decompressor
}

// New creates a Connection with the given identifier, configuration,
// and initial peer address. The local address is informational (used
// for LocalAddr()) and does not affect framing.
func New(id uint32, config Config, peerAddr, localAddr net.Addr) *Connection {
	c := &Connection{
		id:        id,
		peerAddr:  peerAddr,
		localAddr: localAddr,
	}
	c.initState(config)
	return c
}

func (c *Connection) initState(config Config) {
	c.config = config
	c.state = Connecting
	c.localSeq = 0
	c.out = queue.NewOutbound()
	c.ledger = ledger.New()
	c.reorder = queue.NewReorder()
	c.inbox = nil
	c.receivedBits = [256]bool{}
	c.hasNewest = false
	c.newestRemoteSeq = 0
	c.rtt.Reset()
	c.loss = estimator.NewLoss()
	c.congested = false
	c.lastReceive = time.Now()
	c.closingSince = time.Time{}
}

// ID returns the connection's identifier, stable across Reset.
func (c *Connection) ID() uint32 { return c.id }

// State returns the current lifecycle state.
func (c *Connection) State() State { return c.state }

// Open reports whether the connection is still usable: false once
// Closed or Lost.
func (c *Connection) Open() bool {
	return c.state != Closed && c.state != Lost
}

// Congested reports whether RTT currently exceeds the congestion
// threshold.
func (c *Connection) Congested() bool { return c.congested }

// RTT returns the current smoothed round-trip estimate in
// milliseconds.
func (c *Connection) RTT() int64 { return c.rtt.Milliseconds() }

// PacketLoss returns the current loss ratio as a percentage.
func (c *Connection) PacketLoss() float64 { return c.loss.Percent() }

// PeerAddr returns the last known address of the remote peer.
func (c *Connection) PeerAddr() net.Addr { return c.peerAddr }

// SetPeerAddr updates the remote peer address, used when the server
// multiplexer observes a source address change for this connection's
// identifier (NAT rebinding).
func (c *Connection) SetPeerAddr(addr net.Addr) { c.peerAddr = addr }

// LocalAddr returns the local socket address this connection is
// bound through.
func (c *Connection) LocalAddr() net.Addr { return c.localAddr }

// SetConfig replaces the configuration and reinitializes internal
// state derived from it (queues, ledger, reorder buffer, estimators),
// without changing the connection's identity or lifecycle state.
func (c *Connection) SetConfig(config Config) {
	state := c.state
	id := c.id
	peer, local := c.peerAddr, c.localAddr
	c.initState(config)
	c.state = state
	c.id = id
	c.peerAddr, c.localAddr = peer, local
}

// SetCompressor installs the optional compress/decompress hooks. Pass
// nil for either to restore the identity transform.
func (c *Connection) SetCompressor(compress Compressor, decompress Decompressor) {
	c.compress = compress
	c.decompress = decompress
}

// Send enqueues an application message of the given kind onto its
// outbound queue. channel is only meaningful for KindOrdered.
func (c *Connection) Send(kind byte, channel byte, payload []byte) {
	c.out.Send(kind, channel, payload)
}

// Close begins a local shutdown: outgoing datagrams become close
// markers until the closing threshold elapses or the peer's own close
// marker arrives.
func (c *Connection) Close() {
	if c.state == Connecting || c.state == Connected {
		c.state = Closing
		c.closingSince = time.Now()
	}
}

// Reset unconditionally returns the connection to Connecting, clears
// queues, the ledger, and the reassembly buffer, but preserves the
// identifier.
func (c *Connection) Reset() {
	c.initState(c.config)
}

// Received drains and returns every message currently in the inbox,
// in arrival order. Messages not drained before the next SendPacket
// call are discarded.
func (c *Connection) Received() [][]byte {
	msgs := c.inbox
	c.inbox = nil
	return msgs
}

func (c *Connection) markReceived(seq uint8) {
	c.receivedBits[seq] = true
	if !c.hasNewest || wire.SeqLess(c.newestRemoteSeq, seq) {
		c.newestRemoteSeq = seq
		c.hasNewest = true
	}
}

func (c *Connection) updateCongestion() {
	c.congested = time.Duration(c.rtt.Milliseconds())*time.Millisecond > c.config.CongestionRTTThreshold
}

func serializeMessages(messages []wire.Message) []byte {
	var buf []byte
	for _, m := range messages {
		buf = m.Encode(buf)
	}
	return buf
}

// ReceivePacket feeds one inbound datagram through header decode,
// acknowledgment processing, loss detection, and message dispatch.
// tickDelayCorrection is the caller-known sleep already folded into
// this tick, subtracted from RTT samples so scheduler jitter doesn't
// inflate the estimate. It returns the state transitions and loss
// notifications produced by this call.
func (c *Connection) ReceivePacket(data []byte, tickDelayCorrection time.Duration) []Event {
	if !c.Open() {
		return nil
	}

	header, ok := wire.DecodeHeader(data, c.config.ProtocolTag)
	if !ok {
		return nil
	}
	body := data[wire.HeaderSize:]

	var events []Event
	now := time.Now()

	if wire.IsCloseMarker(header, body) {
		c.lastReceive = now
		if c.state != Closed {
			c.state = Closed
			events = append(events, Event{Kind: EventClosed})
		}
		return events
	}

	c.lastReceive = now
	if c.state == Connecting {
		c.state = Connected
		events = append(events, Event{Kind: EventConnected})
	}

	c.markReceived(header.LocalSeq)

	for _, sample := range c.ledger.Acknowledge(header.RemoteAck, header.AckBitfield, now, tickDelayCorrection) {
		c.rtt.Sample(sample)
		c.loss.RecordAcked()
	}
	c.updateCongestion()

	for _, lost := range c.ledger.ExpireLost(now, c.config.PacketDropThreshold) {
		c.out.Requeue(lost.Messages)
		c.loss.RecordLost()
		events = append(events, Event{Kind: EventPacketLost, Payload: serializeMessages(lost.Messages)})
	}

	payload := body
	if c.decompress != nil {
		payload = c.decompress(payload)
	}

	for _, msg := range wire.DecodeMessages(payload) {
		switch msg.Kind {
		case wire.KindInstant, wire.KindReliable:
			c.inbox = append(c.inbox, append([]byte(nil), msg.Payload...))
		case wire.KindOrdered:
			for _, ready := range c.reorder.Accept(msg) {
				c.inbox = append(c.inbox, append([]byte(nil), ready.Payload...))
			}
		}
	}

	return events
}

// SendPacket builds and returns the next outbound datagram (after the
// optional compress hook), along with any state transitions this call
// produced. It returns a nil datagram once the connection is Closed or
// Lost, or on the tick where the connection drop threshold trips.
func (c *Connection) SendPacket() ([]byte, []Event) {
	c.inbox = nil // evict anything the caller didn't drain in time

	if !c.Open() {
		return nil, nil
	}

	now := time.Now()
	if now.Sub(c.lastReceive) > c.config.ConnectionDropThreshold {
		c.state = Lost
		return nil, []Event{{Kind: EventLost}}
	}

	if c.state == Closing {
		if now.Sub(c.closingSince) > c.config.ConnectionClosingThreshold {
			c.state = Closed
			return nil, []Event{{Kind: EventClosed}}
		}
		return wire.EncodeCloseMarker(c.config.ProtocolTag, c.id), nil
	}

	budget := c.config.PacketMaxSize - wire.HeaderSize
	drained, retained := c.out.Drain(budget)

	seq := c.localSeq
	c.localSeq++

	c.ledger.Append(seq, now, retained)

	var ackBitfield uint32
	var remoteAck uint8
	if c.hasNewest {
		remoteAck = c.newestRemoteSeq
		ackBitfield = wire.BuildAckBitfield(remoteAck, func(s uint8) bool { return c.receivedBits[s] })
	}

	header := wire.Header{
		ProtocolTag:  c.config.ProtocolTag,
		ConnectionID: c.id,
		LocalSeq:     seq,
		RemoteAck:    remoteAck,
		AckBitfield:  ackBitfield,
	}

	headerBytes := header.Encode()
	var payload []byte
	for _, m := range drained {
		payload = m.Encode(payload)
	}

	if c.compress != nil {
		return c.compress(headerBytes, payload), nil
	}
	return append(headerBytes, payload...), nil
}
