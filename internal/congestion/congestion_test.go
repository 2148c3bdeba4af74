package congestion

import (
	"testing"
	"time"
)

func TestBBRGrowsWindowOnAck(t *testing.T) {
	b := NewBBR()
	now := time.Now()
	b.OnSent(1200, now)

	acked := []AckedPacket{{Size: 1200, SentTime: now.Add(-10 * time.Millisecond)}}
	b.OnAck(acked, 10*time.Millisecond, true, now)

	if b.Cwnd() <= 0 {
		t.Fatalf("expected positive cwnd, got %d", b.Cwnd())
	}
	if b.PacingRate() <= 0 {
		t.Fatalf("expected positive pacing rate, got %f", b.PacingRate())
	}
}

func TestBBRShrinksWindowOnSustainedLoss(t *testing.T) {
	b := NewBBR()
	now := time.Now()
	for i := 0; i < 4; i++ {
		b.OnSent(1200, now)
	}
	before := b.Cwnd()
	b.OnLoss([]LostPacket{{Size: 1200}}, now)
	if b.Cwnd() >= before {
		t.Fatalf("expected cwnd to shrink after loss: before=%d after=%d", before, b.Cwnd())
	}
}

func TestBBRStartupTransitionsToDrainAfterPlateau(t *testing.T) {
	b := NewBBR()
	now := time.Now()
	for i := 0; i < 5; i++ {
		now = now.Add(10 * time.Millisecond)
		b.OnSent(1200, now)
		b.OnAck([]AckedPacket{{Size: 1200, SentTime: now.Add(-10 * time.Millisecond)}}, 10*time.Millisecond, true, now)
	}
	if b.Phase() == PhaseStartup {
		t.Fatal("expected BBR to leave Startup once bandwidth growth plateaus")
	}
}

func TestCubicGrowsAfterAck(t *testing.T) {
	c := NewCubic()
	now := time.Now()
	initial := c.Cwnd()
	c.OnSent(1200, now)
	c.OnAck([]AckedPacket{{Size: 1200, SentTime: now.Add(-10 * time.Millisecond)}}, 10*time.Millisecond, true, now.Add(time.Second))
	if c.Cwnd() <= initial {
		t.Fatalf("expected window growth, got initial=%d after=%d", initial, c.Cwnd())
	}
}

func TestCubicAppliesBetaOnLoss(t *testing.T) {
	c := NewCubic()
	c.cwnd = 100_000
	c.OnLoss([]LostPacket{{Size: 1000}}, time.Now())
	want := int(100_000 * cubicBeta)
	if c.Cwnd() != want {
		t.Fatalf("expected cwnd %d after beta decrease, got %d", want, c.Cwnd())
	}
}

func TestNewSelectsAlgorithm(t *testing.T) {
	if _, ok := New(AlgorithmBBR).(*BBR); !ok {
		t.Fatal("expected AlgorithmBBR to produce a *BBR")
	}
	if _, ok := New(AlgorithmCubic).(*Cubic); !ok {
		t.Fatal("expected AlgorithmCubic to produce a *Cubic")
	}
	if ParseAlgorithm("cubic") != AlgorithmCubic {
		t.Fatal("expected ParseAlgorithm(\"cubic\") == AlgorithmCubic")
	}
	if ParseAlgorithm("bbr") != AlgorithmBBR {
		t.Fatal("expected ParseAlgorithm(\"bbr\") == AlgorithmBBR")
	}
}
