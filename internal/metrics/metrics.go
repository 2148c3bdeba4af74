// Package metrics implements MXP's observability export surface:
// per-connection counters, gauges, and histograms, backed by
// sync/atomic accumulators rather than a registry library. The
// exporter that would consume these snapshots is out of this
// package's scope.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Histogram is a lock-free running summary of a duration-valued
// series: count, sum, min, and max, sufficient for the rtt and
// handshake_duration exports without pulling in a quantile-sketch
// dependency.
type Histogram struct {
	count int64
	sumNs int64
	minNs int64
	maxNs int64
}

// Observe records one sample.
func (h *Histogram) Observe(d time.Duration) {
	ns := d.Nanoseconds()
	atomic.AddInt64(&h.count, 1)
	atomic.AddInt64(&h.sumNs, ns)
	for {
		cur := atomic.LoadInt64(&h.minNs)
		if cur != 0 && cur <= ns {
			break
		}
		if atomic.CompareAndSwapInt64(&h.minNs, cur, ns) {
			break
		}
	}
	for {
		cur := atomic.LoadInt64(&h.maxNs)
		if cur >= ns {
			break
		}
		if atomic.CompareAndSwapInt64(&h.maxNs, cur, ns) {
			break
		}
	}
}

// Snapshot is a read-only view of a Histogram's accumulated state.
type HistogramSnapshot struct {
	Count int64
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (h *Histogram) Snapshot() HistogramSnapshot {
	count := atomic.LoadInt64(&h.count)
	sum := atomic.LoadInt64(&h.sumNs)
	var mean time.Duration
	if count > 0 {
		mean = time.Duration(sum / count)
	}
	return HistogramSnapshot{
		Count: count,
		Mean:  mean,
		Min:   time.Duration(atomic.LoadInt64(&h.minNs)),
		Max:   time.Duration(atomic.LoadInt64(&h.maxNs)),
	}
}

// SchedulerClassCounters tracks enqueue/dequeue activity for one
// priority class.
type SchedulerClassCounters struct {
	Enqueued int64
	Dequeued int64
}

// Connection is the per-connection accumulator set a Connection
// updates directly from its hot path. All fields are touched only via
// the exported methods so they stay safe to read concurrently from the
// aggregation ticker.
type Connection struct {
	StreamCount int64

	PacketsSent     int64
	PacketsReceived int64
	BytesSent       int64
	BytesReceived   int64

	AckElicitingLost   int64
	Retransmits        int64
	FlowControlStalls  int64
	DatagramDropped    int64
	KeyRotationEvents  int64

	RTT               Histogram
	HandshakeDuration Histogram

	schedMu  sync.Mutex
	sched    [4]SchedulerClassCounters
}

// NewConnection creates an empty accumulator set for one connection.
func NewConnection() *Connection { return &Connection{} }

func (c *Connection) IncStreamCount(delta int64)      { atomic.AddInt64(&c.StreamCount, delta) }
func (c *Connection) OnPacketSent(bytes int)          { atomic.AddInt64(&c.PacketsSent, 1); atomic.AddInt64(&c.BytesSent, int64(bytes)) }
func (c *Connection) OnPacketReceived(bytes int)      { atomic.AddInt64(&c.PacketsReceived, 1); atomic.AddInt64(&c.BytesReceived, int64(bytes)) }
func (c *Connection) OnAckElicitingLost(n int)        { atomic.AddInt64(&c.AckElicitingLost, int64(n)) }
func (c *Connection) OnRetransmit()                   { atomic.AddInt64(&c.Retransmits, 1) }
func (c *Connection) OnFlowControlStall()             { atomic.AddInt64(&c.FlowControlStalls, 1) }
func (c *Connection) OnDatagramDropped()              { atomic.AddInt64(&c.DatagramDropped, 1) }
func (c *Connection) OnKeyRotation()                  { atomic.AddInt64(&c.KeyRotationEvents, 1) }

// OnSchedulerEnqueue/OnSchedulerDequeue record per-class scheduler
// activity; class indices match scheduler.Class ordering.
func (c *Connection) OnSchedulerEnqueue(class int) {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	c.sched[class].Enqueued++
}

func (c *Connection) OnSchedulerDequeue(class int) {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	c.sched[class].Dequeued++
}

func (c *Connection) SchedulerCounters() [4]SchedulerClassCounters {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()
	return c.sched
}

// Snapshot is the aggregated, point-in-time export of a Connection's
// counters, gauges, and histograms, produced on a 1Hz cadence by
// Registry.Run.
type Snapshot struct {
	ConnectionCount int64
	StreamCount     int64

	PacketsSent     int64
	PacketsReceived int64
	BytesSent       int64
	BytesReceived   int64

	AckElicitingLost  int64
	Retransmits       int64
	FlowControlStalls int64
	DatagramDropped   int64
	KeyRotationEvents int64

	RTT               HistogramSnapshot
	HandshakeDuration HistogramSnapshot

	SchedulerPerClass [4]SchedulerClassCounters
}

// Registry tracks every live Connection's accumulator set and
// produces process-wide Snapshots, aggregated on a 1 Hz tick, by
// summing every registered Connection's counters and merging their
// histograms.
type Registry struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[*Connection]struct{})}
}

// Register adds a connection's accumulator set to the registry,
// returning a function that removes it again on connection close.
func (r *Registry) Register(c *Connection) (unregister func()) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.conns, c)
		r.mu.Unlock()
	}
}

// Aggregate sums every registered connection's counters into one
// Snapshot.
func (r *Registry) Aggregate() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out Snapshot
	out.ConnectionCount = int64(len(r.conns))
	for c := range r.conns {
		out.StreamCount += atomic.LoadInt64(&c.StreamCount)
		out.PacketsSent += atomic.LoadInt64(&c.PacketsSent)
		out.PacketsReceived += atomic.LoadInt64(&c.PacketsReceived)
		out.BytesSent += atomic.LoadInt64(&c.BytesSent)
		out.BytesReceived += atomic.LoadInt64(&c.BytesReceived)
		out.AckElicitingLost += atomic.LoadInt64(&c.AckElicitingLost)
		out.Retransmits += atomic.LoadInt64(&c.Retransmits)
		out.FlowControlStalls += atomic.LoadInt64(&c.FlowControlStalls)
		out.DatagramDropped += atomic.LoadInt64(&c.DatagramDropped)
		out.KeyRotationEvents += atomic.LoadInt64(&c.KeyRotationEvents)

		rtt := c.RTT.Snapshot()
		if rtt.Count > 0 {
			out.RTT.Mean = (out.RTT.Mean*time.Duration(out.RTT.Count) + rtt.Mean*time.Duration(rtt.Count)) / time.Duration(out.RTT.Count+rtt.Count)
			if out.RTT.Count == 0 || rtt.Min < out.RTT.Min {
				out.RTT.Min = rtt.Min
			}
			if rtt.Max > out.RTT.Max {
				out.RTT.Max = rtt.Max
			}
		}
		out.RTT.Count += rtt.Count
		hs := c.HandshakeDuration.Snapshot()
		if hs.Count > 0 {
			out.HandshakeDuration.Mean = (out.HandshakeDuration.Mean*time.Duration(out.HandshakeDuration.Count) + hs.Mean*time.Duration(hs.Count)) / time.Duration(out.HandshakeDuration.Count+hs.Count)
			if out.HandshakeDuration.Count == 0 || hs.Min < out.HandshakeDuration.Min {
				out.HandshakeDuration.Min = hs.Min
			}
			if hs.Max > out.HandshakeDuration.Max {
				out.HandshakeDuration.Max = hs.Max
			}
		}
		out.HandshakeDuration.Count += hs.Count

		perClass := c.SchedulerCounters()
		for i := range perClass {
			out.SchedulerPerClass[i].Enqueued += perClass[i].Enqueued
			out.SchedulerPerClass[i].Dequeued += perClass[i].Dequeued
		}
	}
	return out
}

// Run aggregates on a 1 Hz cadence, invoking emit with each Snapshot,
// until stop is closed.
func (r *Registry) Run(stop <-chan struct{}, emit func(Snapshot)) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			emit(r.Aggregate())
		}
	}
}
