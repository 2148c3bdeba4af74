package flowcontrol

import "sync"

// ReceiveWindow tracks bytes delivered by the peer against a limit we
// advertised, and decides when that limit should be raised. MXP
// advances the window once the peer has consumed half of it, rather
// than waiting for it to fill completely, so a fast sender never
// stalls waiting on a MAX_DATA round trip.
type ReceiveWindow struct {
	limit     uint64
	increment uint64
	delivered uint64
}

// NewReceiveWindow creates a window that starts at limit and grows by
// increment each time it advances.
func NewReceiveWindow(limit uint64) *ReceiveWindow {
	return &ReceiveWindow{limit: limit, increment: limit}
}

// OnDelivered records bytes newly delivered to the application and
// reports the new limit to advertise, if the 50%-consumed threshold
// was just crossed.
func (w *ReceiveWindow) OnDelivered(amount uint64) (newLimit uint64, shouldAdvance bool) {
	w.delivered += amount
	remaining := uint64(0)
	if w.limit > w.delivered {
		remaining = w.limit - w.delivered
	}
	if remaining*2 > w.limit {
		return 0, false
	}
	w.limit += w.increment
	return w.limit, true
}

// Limit returns the currently advertised limit.
func (w *ReceiveWindow) Limit() uint64 { return w.limit }

// Delivered returns total bytes delivered so far.
func (w *ReceiveWindow) Delivered() uint64 { return w.delivered }

// ReceiveController mirrors SendController for the receive direction:
// one connection-wide window plus one window per stream, each
// advancing independently.
type ReceiveController struct {
	mu         sync.Mutex
	connection *ReceiveWindow
	streams    map[StreamID]*ReceiveWindow
	defaultLim uint64
}

// NewReceiveController creates a controller with the given
// connection-wide starting limit.
func NewReceiveController(connectionLimit uint64) *ReceiveController {
	return &ReceiveController{
		connection: NewReceiveWindow(connectionLimit),
		streams:    make(map[StreamID]*ReceiveWindow),
		defaultLim: connectionLimit,
	}
}

// OnStreamDelivered records delivery on one stream and on the
// connection as a whole, returning any new limits to advertise.
func (c *ReceiveController) OnStreamDelivered(id StreamID, amount uint64) (streamLimit uint64, advanceStream bool, connLimit uint64, advanceConn bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.streams[id]
	if !ok {
		w = NewReceiveWindow(c.defaultLim)
		c.streams[id] = w
	}
	streamLimit, advanceStream = w.OnDelivered(amount)
	connLimit, advanceConn = c.connection.OnDelivered(amount)
	return
}
