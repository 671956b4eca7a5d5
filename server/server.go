// Package server multiplexes many Connections over a single bound
// datagram socket: routing inbound datagrams by connection id (minting
// a new Connection on first sight of an id), driving the per-tick send
// loop, and retiring connections once they settle into Closed or Lost.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relaynet-go/relaynet/conn"
	"github.com/relaynet-go/relaynet/metrics"
	"github.com/relaynet-go/relaynet/transport"
	"github.com/relaynet-go/relaynet/wire"
)

// Server owns one bound socket and the table of active connections it
// multiplexes traffic across.
type Server struct {
	config  conn.Config
	handler Handler
	log     *logrus.Logger
	metrics *metrics.Metrics

	socket transport.Socket

	mu      sync.RWMutex
	conns   map[uint32]*conn.Connection
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New constructs a Server bound to socket, driven by config, reporting
// through handler (NoopHandler{} if the caller doesn't need hooks).
// m may be nil to disable instrumentation.
func New(socket transport.Socket, config conn.Config, handler Handler, m *metrics.Metrics, log *logrus.Logger) *Server {
	if handler == nil {
		handler = NoopHandler{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		config:  config,
		handler: handler,
		log:     log,
		metrics: m,
		socket:  socket,
		conns:   make(map[uint32]*conn.Connection),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run drives the tick loop until Stop is called. It blocks until the
// loop has fully exited.
func (s *Server) Run() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.handler.OnBind(s.socket.LocalAddr().String())
	s.log.WithField("addr", s.socket.LocalAddr().String()).Info("server bound")

	tickDelay := time.Duration(1000/s.config.SendRate) * time.Millisecond
	tick := 0

	defer close(s.done)
	for {
		select {
		case <-s.stop:
			s.handler.OnShutdown()
			s.resetConnections()
			s.log.Info("server shut down")
			return
		default:
		}

		s.drainInbound()
		s.mu.RLock()
		s.handler.OnTick(tick, s.conns)
		s.mu.RUnlock()
		s.sendTick(tick)
		s.reapDeadConnections()

		time.Sleep(tickDelay)
		tick = (tick + 1) % s.config.SendRate
	}
}

// Stop signals the tick loop to exit and waits for it to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	s.socket.Shutdown()
}

// drainInbound consumes every datagram currently queued on the socket
// without blocking, routing each to its connection (minting one on
// first sight of an unknown id) and updating the peer address on
// change.
func (s *Server) drainInbound() {
	for {
		select {
		case dgram, ok := <-s.socket.Recv():
			if !ok {
				return
			}
			s.routeInbound(dgram)
		default:
			return
		}
	}
}

func (s *Server) routeInbound(dgram transport.Datagram) {
	id, ok := wire.ConnectionIDFromPacket(dgram.Data)
	if !ok {
		return
	}

	s.mu.Lock()
	c, exists := s.conns[id]
	if !exists {
		c = conn.New(id, s.config, dgram.Addr, s.socket.LocalAddr())
		c.SetCompressor(s.handler.OnPacketCompress(), s.handler.OnPacketDecompress())
		s.conns[id] = c
		if s.metrics != nil {
			s.metrics.ConnectionsActive.Set(float64(len(s.conns)))
		}
	} else if c.PeerAddr() == nil || c.PeerAddr().String() != dgram.Addr.String() {
		c.SetPeerAddr(dgram.Addr)
	}
	s.mu.Unlock()

	events := c.ReceivePacket(dgram.Data, 0)
	s.dispatchEvents(id, events)
}

func (s *Server) sendTick(tick int) {
	s.mu.RLock()
	ids := make([]uint32, 0, len(s.conns))
	for id, c := range s.conns {
		if !c.Congested() || tick%s.config.CongestionDivider == 0 {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.mu.RLock()
		c, ok := s.conns[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		if c.State() != conn.Connecting {
			s.handler.OnConnection(id)
		}

		data, events := c.SendPacket()
		s.dispatchEvents(id, events)
		if data == nil {
			continue
		}
		if err := s.socket.Send(udpAddr(c.PeerAddr()), data); err != nil {
			s.log.WithError(err).WithField("conn_id", id).Debug("send failed")
			continue
		}
		if s.metrics != nil {
			s.metrics.PacketsSentTotal.Inc()
			s.metrics.ObserveConnection(id, c.RTT(), c.PacketLoss(), c.Congested())
		}
	}
}

// resetConnections returns every still-tracked connection to its
// initial Connecting state on the shutdown path, before Stop closes the
// socket. The connections stay in the table.
func (s *Server) resetConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Reset()
	}
}

func (s *Server) reapDeadConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.conns {
		if c.Open() {
			continue
		}
		c.Reset()
		delete(s.conns, id)
		if s.metrics != nil {
			s.metrics.ConnectionsActive.Set(float64(len(s.conns)))
			s.metrics.DropConnection(id)
		}
	}
}

func (s *Server) dispatchEvents(id uint32, events []conn.Event) {
	for _, e := range events {
		switch e.Kind {
		case conn.EventConnected:
			s.handler.OnConnection(id)
		case conn.EventClosed:
			s.handler.OnConnectionClosed(id)
		case conn.EventLost:
			s.handler.OnConnectionLost(id)
		case conn.EventPacketLost:
			if s.metrics != nil {
				s.metrics.PacketsLostTotal.Inc()
			}
			s.handler.OnPacketLost(id, e.Payload)
		}
	}
}

func udpAddr(addr net.Addr) *net.UDPAddr {
	if a, ok := addr.(*net.UDPAddr); ok {
		return a
	}
	return nil
}
