// Package testchannel provides an in-memory, optionally lossy
// net.PacketConn pair for driving the reliability and scheduling layers
// without a real UDP socket, in the spirit of the net.Pipe pattern other
// repos in this codebase's lineage use for transport-layer tests.
package testchannel

import (
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned by ReadFrom/WriteTo once the conn has been closed.
var ErrClosed = errors.New("testchannel: closed")

// Addr is the fake net.Addr every Conn in a Pair reports as its local
// and peer address, distinguishing the two ends by name only.
type Addr struct{ Name string }

func (a Addr) Network() string { return "testchannel" }
func (a Addr) String() string  { return a.Name }

type datagram struct {
	data    []byte
	from    net.Addr
	readyAt time.Time
}

// Conn is one endpoint of an in-memory, net.PacketConn-shaped link.
// Writes made on its peer arrive here, independently dropped with
// probability lossProb and delayed by a fixed latency, mirroring how a
// real lossy path delays and drops UDP datagrams. A Conn is safe for
// concurrent use by one reader and one writer.
type Conn struct {
	self Addr
	peer *Conn

	lossProb float64
	delay    time.Duration
	rng      *rand.Rand

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []datagram
	closed bool

	delivered uint64
	dropped   uint64
}

// NewPair builds two connected Conns, A and B: writes to A arrive on B
// and vice versa. lossProb and delay apply identically in both
// directions; seed makes loss decisions reproducible across test runs.
func NewPair(lossProb float64, delay time.Duration, seed int64) (a, b *Conn) {
	a = &Conn{self: Addr{Name: "A"}, lossProb: lossProb, delay: delay, rng: rand.New(rand.NewSource(seed))}
	b = &Conn{self: Addr{Name: "B"}, lossProb: lossProb, delay: delay, rng: rand.New(rand.NewSource(seed + 1))}
	a.cond = sync.NewCond(&a.mu)
	b.cond = sync.NewCond(&b.mu)
	a.peer, b.peer = b, a
	return a, b
}

// WriteTo implements net.PacketConn: it hands p to the peer Conn's
// inbound queue, subject to this Conn's configured loss and delay.
func (c *Conn) WriteTo(p []byte, _ net.Addr) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	if c.lossProb > 0 && c.rng.Float64() < c.lossProb {
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		return len(p), nil
	}

	cp := make([]byte, len(p))
	copy(cp, p)

	peer := c.peer
	peer.mu.Lock()
	if peer.closed {
		peer.mu.Unlock()
		return 0, ErrClosed
	}
	peer.queue = append(peer.queue, datagram{data: cp, from: c.self, readyAt: time.Now().Add(c.delay)})
	peer.cond.Broadcast()
	peer.mu.Unlock()

	c.mu.Lock()
	c.delivered++
	c.mu.Unlock()
	return len(p), nil
}

// ReadFrom implements net.PacketConn, blocking until a datagram has
// cleared its delay or the Conn is closed.
func (c *Conn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if len(c.queue) > 0 {
			head := c.queue[0]
			if wait := time.Until(head.readyAt); wait > 0 {
				c.mu.Unlock()
				time.Sleep(wait)
				c.mu.Lock()
				continue
			}
			c.queue = c.queue[1:]
			n := copy(p, head.data)
			return n, head.from, nil
		}
		if c.closed {
			return 0, nil, ErrClosed
		}
		c.cond.Wait()
	}
}

// Close implements net.PacketConn, unblocking any pending ReadFrom.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
	return nil
}

func (c *Conn) LocalAddr() net.Addr { return c.self }

func (c *Conn) SetDeadline(time.Time) error      { return nil }
func (c *Conn) SetReadDeadline(time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

// Stats reports how many WriteTo calls on this Conn were delivered
// versus dropped, for tests asserting loss simulation landed near its
// configured rate.
func (c *Conn) Stats() (delivered, dropped uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered, c.dropped
}

var _ net.PacketConn = (*Conn)(nil)
