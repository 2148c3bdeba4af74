// Package reliability implements MXP's acknowledgement tracking, loss
// detection, and RTT estimation: a selective-ACK receive history with
// canonical range merging, a sent-packet tracker that
// declares loss by reordering threshold or time threshold, and the
// smoothed RTT estimator those thresholds are scaled from.
package reliability

import (
	"fmt"
	"time"

	"github.com/yafatek/mxp-protocol/internal/frame"
)

// DefaultMaxAckRanges bounds how many disjoint ranges a ReceiveHistory
// tracks before dropping the oldest, least useful ones.
const DefaultMaxAckRanges = 32

// Range is an inclusive span of packet numbers, [Start, End].
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) overlapsOrAdjacent(o Range) bool {
	return !(r.End+1 < o.Start || o.End+1 < r.Start)
}

func (r Range) merge(o Range) Range {
	start, end := r.Start, r.End
	if o.Start < start {
		start = o.Start
	}
	if o.End > end {
		end = o.End
	}
	return Range{Start: start, End: end}
}

// ReceiveHistory accumulates observed packet numbers from one peer
// into merged, descending-sorted ranges. Record reports when the
// configured ack delay has elapsed since the first ack-eliciting
// packet after the last ACK; BuildFrame emits the current ranges as a
// compact selective ACK whenever it is called, without checking that
// delay.
type ReceiveHistory struct {
	ranges       []Range // sorted descending by End
	maxRanges    int
	ackDelay     time.Duration
	lastAckTime  time.Time
	ackRequested time.Time
}

// NewReceiveHistory creates an empty history.
func NewReceiveHistory(maxRanges int, ackDelay time.Duration) *ReceiveHistory {
	if maxRanges < 1 {
		maxRanges = 1
	}
	return &ReceiveHistory{maxRanges: maxRanges, ackDelay: ackDelay}
}

// Record observes packetNumber and reports whether an ACK is now due
// immediately (the configured delay has elapsed since the first
// ack-eliciting packet since the last ACK was sent).
func (h *ReceiveHistory) Record(packetNumber uint64, ackEliciting bool, now time.Time) bool {
	h.insert(packetNumber)
	if ackEliciting && h.ackRequested.IsZero() {
		h.ackRequested = now
	}
	return h.shouldAckImmediately(now)
}

func (h *ReceiveHistory) shouldAckImmediately(now time.Time) bool {
	if h.ackRequested.IsZero() {
		return false
	}
	return now.Sub(h.ackRequested) >= h.ackDelay
}

func (h *ReceiveHistory) insert(pn uint64) {
	for idx := 0; idx < len(h.ranges); idx++ {
		r := h.ranges[idx]
		switch {
		case pn >= r.Start && pn <= r.End:
			return
		case pn+1 == r.Start:
			h.ranges[idx].Start = pn
			h.compressAround(idx)
			return
		case r.End+1 == pn:
			h.ranges[idx].End = pn
			h.compressAround(idx)
			return
		case pn > r.End:
			h.ranges = append(h.ranges, Range{})
			copy(h.ranges[idx+1:], h.ranges[idx:])
			h.ranges[idx] = Range{Start: pn, End: pn}
			h.truncate()
			return
		}
	}
	h.ranges = append(h.ranges, Range{Start: pn, End: pn})
	h.truncate()
}

func (h *ReceiveHistory) compressAround(idx int) {
	if idx > 0 && h.ranges[idx].overlapsOrAdjacent(h.ranges[idx-1]) {
		h.ranges[idx-1] = h.ranges[idx].merge(h.ranges[idx-1])
		h.ranges = append(h.ranges[:idx], h.ranges[idx+1:]...)
		h.compressAround(idx - 1)
		return
	}
	if idx+1 < len(h.ranges) && h.ranges[idx].overlapsOrAdjacent(h.ranges[idx+1]) {
		h.ranges[idx] = h.ranges[idx].merge(h.ranges[idx+1])
		h.ranges = append(h.ranges[:idx+1], h.ranges[idx+2:]...)
		h.compressAround(idx)
	}
}

func (h *ReceiveHistory) truncate() {
	if len(h.ranges) > h.maxRanges {
		h.ranges = h.ranges[:h.maxRanges]
	}
}

// Ranges exposes the current merged ranges, highest first, for tests
// and diagnostics.
func (h *ReceiveHistory) Ranges() []Range { return h.ranges }

// BuildFrame produces a selective-ACK frame from the current history,
// or reports ok=false if nothing has been observed yet.
func (h *ReceiveHistory) BuildFrame(now time.Time) (frame.Ack, bool) {
	if len(h.ranges) == 0 {
		return frame.Ack{}, false
	}

	var ackDelay time.Duration
	if !h.lastAckTime.IsZero() {
		ackDelay = now.Sub(h.lastAckTime)
	}

	out := make([]frame.AckRange, len(h.ranges))
	prevLow := h.ranges[0].End + 1
	for i, r := range h.ranges {
		gap := uint64(0)
		if i > 0 {
			gap = prevLow - r.End - 1
		}
		out[i] = frame.AckRange{Largest: r.End, Length: r.End - r.Start + 1, Gap: gap}
		prevLow = r.Start
	}

	h.lastAckTime = now
	h.ackRequested = time.Time{}
	return frame.Ack{Ranges: out, AckDelay: uint64(ackDelay.Microseconds())}, true
}

// decodeRanges reconstructs inclusive (Start, End) ranges from an
// inbound Ack frame's gap-encoded form, highest first.
func decodeRanges(ack frame.Ack) ([]Range, error) {
	if len(ack.Ranges) == 0 {
		return nil, fmt.Errorf("reliability: ack frame carries no ranges")
	}
	out := make([]Range, len(ack.Ranges))
	prevLow := ack.Ranges[0].Largest + 1
	for i, fr := range ack.Ranges {
		if fr.Length == 0 {
			return nil, fmt.Errorf("reliability: ack range %d has zero length", i)
		}
		high := fr.Largest
		if i > 0 {
			high = prevLow - fr.Gap - 1
		}
		low := high - (fr.Length - 1)
		out[i] = Range{Start: low, End: high}
		prevLow = low
	}
	return out, nil
}

func rangesContain(ranges []Range, pn uint64) bool {
	for _, r := range ranges {
		if pn >= r.Start && pn <= r.End {
			return true
		}
	}
	return false
}
