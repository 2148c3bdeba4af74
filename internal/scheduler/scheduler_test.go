package scheduler

import "testing"

func TestPopPrefersHigherWeightUnderContention(t *testing.T) {
	s := New(1200)
	s.Push(Item{Class: ClassBackground, Size: 100, Payload: "bg1"})
	s.Push(Item{Class: ClassCritical, Size: 100, Payload: "crit1"})

	item, ok := s.Pop()
	if !ok || item.Payload != "crit1" {
		t.Fatalf("expected critical item to win first pop, got %+v ok=%v", item, ok)
	}
}

func TestWeightedFairnessAcrossSustainedContention(t *testing.T) {
	s := New(1200)
	const rounds = 80
	for i := 0; i < rounds; i++ {
		s.Push(Item{Class: ClassCritical, Size: 100, Payload: "c"})
		s.Push(Item{Class: ClassBackground, Size: 100, Payload: "b"})
	}

	counts := map[Class]int{}
	for {
		item, ok := s.Pop()
		if !ok {
			break
		}
		counts[item.Class]++
	}

	if counts[ClassCritical] != rounds || counts[ClassBackground] != rounds {
		t.Fatalf("expected all items drained, got %v", counts)
	}

	// Under sustained contention, Critical (weight 8) should be served
	// far more often than Background (weight 1) within any early
	// prefix of the schedule.
	s2 := New(1200)
	for i := 0; i < rounds; i++ {
		s2.Push(Item{Class: ClassCritical, Size: 100, Payload: "c"})
		s2.Push(Item{Class: ClassBackground, Size: 100, Payload: "b"})
	}
	var critFirst, bgFirst int
	for i := 0; i < 16; i++ {
		item, ok := s2.Pop()
		if !ok {
			break
		}
		if item.Class == ClassCritical {
			critFirst++
		} else {
			bgFirst++
		}
	}
	if critFirst <= bgFirst {
		t.Fatalf("expected critical to dominate the early schedule, crit=%d bg=%d", critFirst, bgFirst)
	}
}

func TestLowerClassNeverStarvesUnderSoleContention(t *testing.T) {
	s := New(1200)
	for i := 0; i < 5; i++ {
		s.Push(Item{Class: ClassBackground, Size: 100, Payload: i})
	}
	for i := 0; i < 5; i++ {
		item, ok := s.Pop()
		if !ok || item.Class != ClassBackground {
			t.Fatalf("expected background items to drain when no other class competes, got %+v ok=%v", item, ok)
		}
	}
}

func TestFIFOOrderWithinClass(t *testing.T) {
	s := New(1200)
	s.Push(Item{Class: ClassStreaming, Size: 10, Payload: 1})
	s.Push(Item{Class: ClassStreaming, Size: 10, Payload: 2})
	s.Push(Item{Class: ClassStreaming, Size: 10, Payload: 3})

	for _, want := range []int{1, 2, 3} {
		item, ok := s.Pop()
		if !ok || item.Payload != want {
			t.Fatalf("expected FIFO order within class, got %+v want %d", item, want)
		}
	}
}

func TestDrainQuantumBoundsOutputToBudget(t *testing.T) {
	s := New(1200)
	for i := 0; i < 10; i++ {
		s.Push(Item{Class: ClassControl, Size: 200, Payload: i})
	}

	batch := s.DrainQuantum(500)
	if len(batch) != 3 {
		t.Fatalf("expected draining to stop once 3 items of size 200 reach the 500-byte budget, got %d", len(batch))
	}
	if !s.HasWork() {
		t.Fatal("expected remaining items still queued after quantum drain")
	}
}

func TestHasWorkAndPendingReflectQueueState(t *testing.T) {
	s := New(1200)
	if s.HasWork() {
		t.Fatal("expected empty scheduler to report no work")
	}
	s.Push(Item{Class: ClassControl, Size: 10})
	if !s.HasWork() {
		t.Fatal("expected scheduler to report work after push")
	}
	pending := s.Pending()
	if pending[ClassControl] != 1 {
		t.Fatalf("expected 1 pending control item, got %v", pending)
	}
}

func TestPopOnEmptySchedulerReturnsFalse(t *testing.T) {
	s := New(1200)
	if _, ok := s.Pop(); ok {
		t.Fatal("expected Pop on empty scheduler to report false")
	}
}
