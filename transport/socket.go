// Package transport implements the datagram socket contract: a thin,
// non-blocking wrapper over net.UDPConn that hands the server
// multiplexer received datagrams over a channel, so the multiplexer's
// tick loop never blocks on a socket read.
package transport

import (
	"net"
)

// Datagram is one received packet plus the address it arrived from.
type Datagram struct {
	Addr *net.UDPAddr
	Data []byte
}

// Socket is the datagram transport contract the server multiplexer
// depends on. UDPSocket is the production implementation; tests may
// substitute a fake.
type Socket interface {
	// Recv returns the channel of inbound datagrams. The channel is
	// closed once the read goroutine exits (after Shutdown or a fatal
	// read error).
	Recv() <-chan Datagram
	// Send writes one datagram to addr. Safe for concurrent use.
	Send(addr *net.UDPAddr, data []byte) error
	// LocalAddr returns the address the socket is bound to.
	LocalAddr() net.Addr
	// Shutdown closes the underlying socket and stops the read
	// goroutine.
	Shutdown() error
}

// UDPSocket binds one net.UDPConn and reads it on a dedicated
// goroutine, so the server's tick loop only ever does a non-blocking
// channel receive.
type UDPSocket struct {
	conn     *net.UDPConn
	recvChan chan Datagram
	maxSize  int
}

// Bind opens a UDP listener on address and starts the read goroutine.
// maxPacketSize bounds the largest datagram accepted; an oversized
// datagram is dropped whole rather than forwarded truncated.
func Bind(address string, maxPacketSize int) (*UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	s := &UDPSocket{
		conn:     conn,
		recvChan: make(chan Datagram, 256),
		maxSize:  maxPacketSize,
	}
	go s.readLoop()
	return s, nil
}

func (s *UDPSocket) readLoop() {
	defer close(s.recvChan)
	// One byte larger than the accepted maximum: ReadFromUDP fills it
	// completely only when the actual datagram exceeds maxSize, which
	// is how an oversized read is told apart from one that exactly
	// fills maxSize and must be kept.
	buf := make([]byte, s.maxSize+1)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n > s.maxSize {
			continue // oversized datagram, dropped whole rather than forwarded truncated
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.recvChan <- Datagram{Addr: addr, Data: data}
	}
}

// Recv implements Socket.
func (s *UDPSocket) Recv() <-chan Datagram { return s.recvChan }

// Send implements Socket.
func (s *UDPSocket) Send(addr *net.UDPAddr, data []byte) error {
	_, err := s.conn.WriteToUDP(data, addr)
	return err
}

// LocalAddr implements Socket.
func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Shutdown implements Socket.
func (s *UDPSocket) Shutdown() error { return s.conn.Close() }
