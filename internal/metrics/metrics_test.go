package metrics

import (
	"testing"
	"time"
)

func TestHistogramTracksCountMeanMinMax(t *testing.T) {
	var h Histogram
	h.Observe(10 * time.Millisecond)
	h.Observe(30 * time.Millisecond)
	h.Observe(20 * time.Millisecond)

	snap := h.Snapshot()
	if snap.Count != 3 {
		t.Fatalf("expected count 3, got %d", snap.Count)
	}
	if snap.Min != 10*time.Millisecond {
		t.Fatalf("expected min 10ms, got %v", snap.Min)
	}
	if snap.Max != 30*time.Millisecond {
		t.Fatalf("expected max 30ms, got %v", snap.Max)
	}
	if snap.Mean != 20*time.Millisecond {
		t.Fatalf("expected mean 20ms, got %v", snap.Mean)
	}
}

func TestRegistryAggregatesAcrossConnections(t *testing.T) {
	r := NewRegistry()

	c1 := NewConnection()
	c1.OnPacketSent(100)
	c1.OnPacketReceived(50)
	unreg1 := r.Register(c1)

	c2 := NewConnection()
	c2.OnPacketSent(200)
	c2.OnRetransmit()
	unreg2 := r.Register(c2)
	defer unreg2()

	snap := r.Aggregate()
	if snap.ConnectionCount != 2 {
		t.Fatalf("expected 2 connections, got %d", snap.ConnectionCount)
	}
	if snap.BytesSent != 300 {
		t.Fatalf("expected 300 bytes sent, got %d", snap.BytesSent)
	}
	if snap.Retransmits != 1 {
		t.Fatalf("expected 1 retransmit, got %d", snap.Retransmits)
	}

	unreg1()
	snap = r.Aggregate()
	if snap.ConnectionCount != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", snap.ConnectionCount)
	}
}

func TestSchedulerCountersTrackPerClassActivity(t *testing.T) {
	c := NewConnection()
	c.OnSchedulerEnqueue(0)
	c.OnSchedulerEnqueue(0)
	c.OnSchedulerDequeue(0)
	c.OnSchedulerEnqueue(3)

	counters := c.SchedulerCounters()
	if counters[0].Enqueued != 2 || counters[0].Dequeued != 1 {
		t.Fatalf("unexpected class 0 counters: %+v", counters[0])
	}
	if counters[3].Enqueued != 1 {
		t.Fatalf("unexpected class 3 counters: %+v", counters[3])
	}
}
