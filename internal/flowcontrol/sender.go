package flowcontrol

import (
	"fmt"
	"sync"
)

// StreamID identifies a multiplexed stream for flow-control bookkeeping.
type StreamID uint64

// SendController enforces both a connection-wide send limit and a
// per-stream send limit, rejecting a send that would exceed either:
// every stream write is gated by two nested windows.
type SendController struct {
	mu         sync.Mutex
	connection *SendWindow
	streams    map[StreamID]*SendWindow
	defaultLim uint64
}

// NewSendController creates a controller with the given connection-wide
// limit; a stream starts with that same limit unless a StreamMaxData
// frame for it arrives first and sets its own. After that, a stream's
// limit only grows.
func NewSendController(connectionLimit uint64) *SendController {
	return &SendController{
		connection: NewSendWindow(connectionLimit),
		streams:    make(map[StreamID]*SendWindow),
		defaultLim: connectionLimit,
	}
}

func (c *SendController) streamWindowLocked(id StreamID) *SendWindow {
	w, ok := c.streams[id]
	if !ok {
		w = NewSendWindow(c.defaultLim)
		c.streams[id] = w
	}
	return w
}

// UpdateConnectionLimit applies an inbound ConnectionMaxData frame.
func (c *SendController) UpdateConnectionLimit(newLimit uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connection.UpdateLimit(newLimit)
}

// UpdateStreamLimit applies an inbound StreamMaxData frame.
func (c *SendController) UpdateStreamLimit(id StreamID, newLimit uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.streams[id]
	if !ok {
		c.streams[id] = NewSendWindow(newLimit)
		return
	}
	w.UpdateLimit(newLimit)
}

// Consume reserves amount bytes against both windows, failing (and
// reserving nothing) if either window lacks the budget.
func (c *SendController) Consume(id StreamID, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if amount > c.connection.Available() {
		return connWindowError(c.connection.Available(), amount)
	}
	streamWindow := c.streamWindowLocked(id)
	if amount > streamWindow.Available() {
		return streamWindowError(id, streamWindow.Available(), amount)
	}

	_ = c.connection.Consume(amount)
	_ = streamWindow.Consume(amount)
	return nil
}

// ConnectionAvailable reports connection-wide remaining send budget.
func (c *SendController) ConnectionAvailable() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection.Available()
}

// StreamAvailable reports a stream's remaining send budget.
func (c *SendController) StreamAvailable(id StreamID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.streams[id]; ok {
		return w.Available()
	}
	return c.connection.Available()
}

func connWindowError(available, attempted uint64) error {
	return fmt.Errorf("flowcontrol: connection send window exceeded: attempted %d bytes with %d available", attempted, available)
}

func streamWindowError(id StreamID, available, attempted uint64) error {
	return fmt.Errorf("flowcontrol: stream %d send window exceeded: attempted %d bytes with %d available", id, attempted, available)
}
