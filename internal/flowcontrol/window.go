// Package flowcontrol implements MXP's two-level, credit-based flow
// control: a per-stream send window nested inside a per-connection
// send window, and a receive-side counterpart that
// auto-advertises a higher limit once half of the current one has
// been consumed.
package flowcontrol

import "fmt"

// SendWindow tracks bytes consumed against a peer-advertised limit.
type SendWindow struct {
	maxData  uint64
	consumed uint64
}

// NewSendWindow creates a window starting at the given limit.
func NewSendWindow(maxData uint64) *SendWindow {
	return &SendWindow{maxData: maxData}
}

// UpdateLimit raises the window's limit; a lower value is ignored,
// since MAX_DATA frames are only ever supposed to grow the limit.
func (w *SendWindow) UpdateLimit(newMax uint64) {
	if newMax > w.maxData {
		w.maxData = newMax
	}
}

// Available reports how many more bytes may be sent before hitting
// the limit.
func (w *SendWindow) Available() uint64 {
	if w.consumed >= w.maxData {
		return 0
	}
	return w.maxData - w.consumed
}

// Consume records amount bytes sent, failing if it would exceed the
// advertised limit.
func (w *SendWindow) Consume(amount uint64) error {
	if amount > w.Available() {
		return fmt.Errorf("flowcontrol: send window exceeded: attempted %d bytes with %d available", amount, w.Available())
	}
	w.consumed += amount
	return nil
}

// Consumed returns total bytes sent through this window so far.
func (w *SendWindow) Consumed() uint64 { return w.consumed }

// Limit returns the current advertised limit.
func (w *SendWindow) Limit() uint64 { return w.maxData }
