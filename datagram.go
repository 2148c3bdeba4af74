package mxp

import (
	"context"
	"fmt"
	"time"

	"github.com/yafatek/mxp-protocol/internal/frame"
	"github.com/yafatek/mxp-protocol/internal/packet"
	"github.com/yafatek/mxp-protocol/internal/scheduler"
)

// maxDatagramInboundQueue bounds how many unreceived inbound
// datagrams a Connection will hold before dropping the oldest one,
// preventing an application that never calls ReceiveDatagram from
// growing memory without bound.
const maxDatagramInboundQueue = 1024

// ErrDatagramTooLarge is returned when a datagram payload would not
// fit in a single packet at the connection's configured MTU.
var ErrDatagramTooLarge = fmt.Errorf("mxp: datagram exceeds path MTU")

// SendDatagram enqueues an unreliable, unordered payload as a single
// Datagram frame. It is never retransmitted on loss and
// carries no flow-control accounting, matching frame.Datagram's wire
// semantics.
func (c *Connection) SendDatagram(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != connStateEstablished {
		return fmt.Errorf("mxp: cannot send datagram before handshake completes")
	}

	const datagramFrameOverhead = 1 + 4
	if len(payload) > c.cfg.MTU-packet.HeaderSize-authTagOverhead-datagramFrameOverhead {
		return ErrDatagramTooLarge
	}

	f := frame.Datagram{Data: payload}
	c.sched.Push(scheduler.Item{Class: scheduler.ClassStreaming, Size: datagramFrameOverhead + len(payload), Payload: f})
	c.m.OnSchedulerEnqueue(int(scheduler.ClassStreaming))
	c.drainLocked(time.Now())
	return nil
}

// ReceiveDatagram blocks until an inbound datagram is available, the
// connection closes, or ctx is done.
func (c *Connection) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if len(c.inDatagrams) > 0 {
			d := c.inDatagrams[0]
			c.inDatagrams = c.inDatagrams[1:]
			return d, nil
		}
		if c.state == connStateClosed {
			return nil, c.closeErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.cond.Wait()
	}
}

func (c *Connection) dropOldestDatagramLocked() {
	if len(c.inDatagrams) >= maxDatagramInboundQueue {
		c.inDatagrams = c.inDatagrams[1:]
		c.m.OnDatagramDropped()
	}
}
