package testchannel

import (
	"testing"
	"time"
)

func TestPairDeliversInOrderWithoutLoss(t *testing.T) {
	a, b := NewPair(0, 0, 1)
	defer a.Close()
	defer b.Close()

	for i := 0; i < 5; i++ {
		if _, err := a.WriteTo([]byte{byte(i)}, nil); err != nil {
			t.Fatalf("WriteTo(%d): %v", i, err)
		}
	}
	buf := make([]byte, 1)
	for i := 0; i < 5; i++ {
		n, from, err := b.ReadFrom(buf)
		if err != nil {
			t.Fatalf("ReadFrom: %v", err)
		}
		if n != 1 || buf[0] != byte(i) {
			t.Fatalf("ReadFrom %d: got %v, want [%d]", i, buf[:n], i)
		}
		if from.String() != "A" {
			t.Fatalf("ReadFrom %d: from = %v, want A", i, from)
		}
	}
}

func TestPairLossRateIsApproximatelyConfigured(t *testing.T) {
	a, b := NewPair(0.3, 0, 42)
	defer a.Close()
	defer b.Close()

	const n = 5000
	for i := 0; i < n; i++ {
		a.WriteTo([]byte{0}, nil)
	}
	delivered, dropped := a.Stats()
	if delivered+dropped != n {
		t.Fatalf("delivered+dropped = %d, want %d", delivered+dropped, n)
	}
	rate := float64(dropped) / float64(n)
	if rate < 0.25 || rate > 0.35 {
		t.Fatalf("observed drop rate %.3f, want close to 0.3", rate)
	}
}

func TestReadFromRespectsDelay(t *testing.T) {
	a, b := NewPair(0, 30*time.Millisecond, 1)
	defer a.Close()
	defer b.Close()

	start := time.Now()
	a.WriteTo([]byte{1}, nil)
	buf := make([]byte, 1)
	if _, _, err := b.ReadFrom(buf); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("ReadFrom returned after %v, expected to honor delay", elapsed)
	}
}

func TestCloseUnblocksReadFrom(t *testing.T) {
	a, b := NewPair(0, 0, 1)
	defer a.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, _, err := b.ReadFrom(buf)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("ReadFrom error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ReadFrom did not unblock after Close")
	}

	if _, err := b.WriteTo([]byte{1}, nil); err != ErrClosed {
		t.Fatalf("WriteTo after Close = %v, want ErrClosed", err)
	}
}

func TestPeerCloseRejectsFurtherWrites(t *testing.T) {
	a, b := NewPair(0, 0, 1)
	defer a.Close()

	b.Close()
	if _, err := a.WriteTo([]byte{1}, nil); err != ErrClosed {
		t.Fatalf("WriteTo to closed peer = %v, want ErrClosed", err)
	}
}
