package mxp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yafatek/mxp-protocol/internal/flowcontrol"
	"github.com/yafatek/mxp-protocol/internal/frame"
	"github.com/yafatek/mxp-protocol/internal/packet"
	"github.com/yafatek/mxp-protocol/internal/scheduler"
	"github.com/yafatek/mxp-protocol/internal/streams"
)

// streamDataOverhead is the fixed portion of an encoded StreamData
// frame (tag, stream id, offset, fin byte, length prefix) that must be
// subtracted from the MTU budget before slicing application bytes.
const streamDataOverhead = 1 + 8 + 8 + 1 + 4

// Stream is one multiplexed, independently flow-controlled byte stream
// within a Connection. A Stream is safe for concurrent
// Read and Write from separate goroutines, but not for concurrent
// Writes with each other.
type Stream struct {
	id   streams.ID
	conn *Connection
}

// ID reports the stream's wire identifier.
func (s *Stream) ID() uint64 { return uint64(s.id) }

// OpenStream allocates a new locally-initiated bidirectional stream
// and announces it to the peer with a StreamOpen frame.
func (c *Connection) OpenStream() (*Stream, error) {
	return c.openStream(streams.KindBidirectional, 0)
}

// OpenStreamPriority is like OpenStream but pins the stream's
// scheduling priority hint carried in its StreamOpen frame.
func (c *Connection) OpenStreamPriority(priority uint8) (*Stream, error) {
	return c.openStream(streams.KindBidirectional, priority)
}

func (c *Connection) openStream(kind streams.Kind, priority uint8) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != connStateEstablished {
		return nil, fmt.Errorf("mxp: cannot open stream before handshake completes")
	}

	id := c.streamMgr.OpenLocal(kind)
	c.sched.Push(scheduler.Item{Class: scheduler.ClassControl, Size: 10, Payload: frame.StreamOpen{StreamID: uint64(id), Priority: priority}})
	c.m.OnSchedulerEnqueue(int(scheduler.ClassControl))
	c.m.IncStreamCount(1)
	c.drainLocked(time.Now())

	return &Stream{id: id, conn: c}, nil
}

// AcceptStream blocks until the peer opens a stream, or ctx is done.
func (c *Connection) AcceptStream(ctx context.Context) (*Stream, error) {
	select {
	case id := <-c.acceptCh:
		return &Stream{id: id, conn: c}, nil
	case <-c.closeChan:
		return nil, c.closeErrOrDefault()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) closeErrOrDefault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return fmt.Errorf("mxp: connection closed")
}

// Write enqueues data onto the stream's send buffer, chunking it into
// StreamData frames that respect the connection's two-level flow
// control windows, and kicks the scheduler to drain what congestion
// control currently allows. It does not block for the peer's ACK.
func (s *Stream) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == connStateClosed {
		return 0, c.closeErr
	}

	sid := flowcontrol.StreamID(s.id)
	if err := c.sendFC.Consume(sid, uint64(len(data))); err != nil {
		return 0, err
	}

	sendBuf, _, err := c.streamMgr.Get(s.id)
	if err != nil {
		return 0, err
	}
	if err := sendBuf.Write(data); err != nil {
		return 0, err
	}

	s.enqueueChunksLocked(sendBuf)
	c.drainLocked(time.Now())
	return len(data), nil
}

// CloseWrite finishes the stream's send side, after which no further
// Writes are accepted; already-written bytes are still delivered.
func (s *Stream) CloseWrite() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	sendBuf, _, err := c.streamMgr.Get(s.id)
	if err != nil {
		return err
	}
	if err := sendBuf.Finish(); err != nil {
		return err
	}
	s.enqueueChunksLocked(sendBuf)
	c.drainLocked(time.Now())
	return nil
}

// Reset abandons the stream's send side, discarding any unsent data
// and notifying the peer with a Control/Reset frame.
func (s *Stream) Reset() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	sendBuf, _, err := c.streamMgr.Get(s.id)
	if err != nil {
		return err
	}
	sendBuf.Reset()

	var idBytes [8]byte
	for i := 0; i < 8; i++ {
		idBytes[i] = byte(uint64(s.id) >> (8 * i))
	}
	c.sched.Push(scheduler.Item{Class: scheduler.ClassControl, Size: 11, Payload: frame.Control{Subtype: frame.ControlReset, Data: idBytes[:]}})
	c.m.OnSchedulerEnqueue(int(scheduler.ClassControl))
	c.drainLocked(time.Now())
	return nil
}

func (s *Stream) enqueueChunksLocked(sendBuf *streams.SendBuffer) {
	c := s.conn
	maxChunk := c.cfg.MTU - packet.HeaderSize - authTagOverhead - streamDataOverhead
	if maxChunk < 1 {
		maxChunk = 1
	}
	for {
		chunk, ok := sendBuf.NextChunk(maxChunk)
		if !ok {
			return
		}
		f := frame.StreamData{StreamID: uint64(s.id), Offset: chunk.Offset, Data: chunk.Payload, Fin: chunk.Fin}
		size := streamDataOverhead + len(chunk.Payload)
		c.sched.Push(scheduler.Item{Class: scheduler.ClassStreaming, Size: size, Payload: f})
		c.m.OnSchedulerEnqueue(int(scheduler.ClassStreaming))
	}
}

// Read blocks until at least one byte is available, the stream
// reaches DataRead with nothing left, or it is reset, returning
// io.EOF once the stream has been fully consumed.
func (s *Stream) Read(buf []byte) (int, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		_, recvBuf, err := c.streamMgr.Get(s.id)
		if err != nil {
			return 0, err
		}
		if recvBuf.State() == streams.RecvStateResetRecvd {
			return 0, &StreamError{StreamID: uint64(s.id), Reason: "reset by peer"}
		}
		if recvBuf.Len() > 0 {
			out := recvBuf.Read(len(buf))
			n := copy(buf, out)
			return n, nil
		}
		if recvBuf.State() == streams.RecvStateDataRead {
			return 0, io.EOF
		}
		if c.state == connStateClosed {
			return 0, c.closeErr
		}
		c.cond.Wait()
	}
}
