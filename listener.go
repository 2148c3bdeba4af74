package mxp

import (
	"context"
	"fmt"
	"net"
	"sync"

	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
	"github.com/yafatek/mxp-protocol/internal/metrics"
	"github.com/yafatek/mxp-protocol/internal/packet"
)

// Listener accepts inbound MXP connections on one bound UDP socket,
// demultiplexing inbound packets across live connections by the 64-bit
// connection id carried in the clear at the front of every packet
// header. Because ConnID sits outside the header-protected range, the
// listener can route a packet to its Connection before it knows, or
// even has, that connection's keys — and a peer that changes source
// address keeps its Connection as long as its connection id is
// unchanged.
type Listener struct {
	conn     *net.UDPConn
	identity Identity
	cfg      Config
	registry *metrics.Registry

	mu       sync.Mutex
	byConnID map[uint64]*Connection
	closed   bool

	acceptCh  chan *Connection
	closeChan chan struct{}
}

// Listen binds laddr and begins accepting inbound handshakes under
// the given static identity.
func Listen(laddr string, identity Identity, cfg Config) (*Listener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	udpAddr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("mxp: resolve %q: %w", laddr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("mxp: listen %q: %w", laddr, err)
	}

	l := &Listener{
		conn:      conn,
		identity:  identity,
		cfg:       cfg,
		registry:  metrics.NewRegistry(),
		byConnID:  make(map[uint64]*Connection),
		acceptCh:  make(chan *Connection, 64),
		closeChan: make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

// Metrics exposes the registry aggregating every connection this
// listener has accepted, for an embedding application's own exporter.
func (l *Listener) Metrics() *metrics.Registry { return l.registry }

// Addr reports the socket's bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

func (l *Listener) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		l.handlePacket(data, addr)
	}
}

func (l *Listener) handlePacket(data []byte, addr *net.UDPAddr) {
	connID, ok := packet.DecodeConnID(data)
	if !ok {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	conn, known := l.byConnID[connID]
	if !known {
		conn = l.acceptConnectionLocked(connID, addr)
	}
	l.mu.Unlock()

	if known {
		conn.updateRemoteAddr(addr)
	}
	conn.handleInbound(data)
}

func (l *Listener) acceptConnectionLocked(connID uint64, addr *net.UDPAddr) *Connection {
	c := newConnection(l.cfg, sharedSocket{l.conn}, addr, false, l.registry)
	c.id = connID // adopt the initiator's chosen id rather than the random one newConnection assigns
	hs, err := mxpcrypto.NewResponder(l.identity.static, l.cfg.AEADSuite)
	if err != nil {
		// Identity construction failing here means the responder's own
		// static key pair is malformed; there is no peer to signal yet,
		// so just drop the connection attempt.
		l.cfg.Logger.Error().Err(err).Msg("mxp: create responder handshake")
		c.Close()
		return c
	}
	c.hs = hs
	l.byConnID[connID] = c

	go l.watchEstablished(c, connID)
	go c.timerLoop()
	return c
}

// watchEstablished forwards a responder connection to Accept once its
// handshake completes, and removes it from the connection-id table once
// it closes (whether or not it ever established).
func (l *Listener) watchEstablished(c *Connection, connID uint64) {
	c.mu.Lock()
	for c.state == connStateHandshaking {
		c.cond.Wait()
	}
	established := c.state == connStateEstablished
	c.mu.Unlock()

	if established {
		select {
		case l.acceptCh <- c:
		case <-l.closeChan:
			c.Close()
		}
	}

	<-c.closeChan
	l.mu.Lock()
	if l.byConnID[connID] == c {
		delete(l.byConnID, connID)
	}
	l.mu.Unlock()
}

// Accept blocks until a peer completes a handshake, or ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	select {
	case c := <-l.acceptCh:
		return c, nil
	case <-l.closeChan:
		return nil, fmt.Errorf("mxp: listener closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections and closes every connection
// currently tracked by this listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := make([]*Connection, 0, len(l.byConnID))
	for _, c := range l.byConnID {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	close(l.closeChan)
	for _, c := range conns {
		c.Close()
	}
	return l.conn.Close()
}
