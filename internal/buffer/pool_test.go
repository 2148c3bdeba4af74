package buffer

import "testing"

func TestGetReleaseReuse(t *testing.T) {
	p := New(2, 128)

	s1 := p.Get()
	s1.SetLen(64)
	copy(s1.Bytes(), []byte("hello"))
	s1.Release()

	s2 := p.Get()
	if cap(s2.Bytes()) != 128 {
		t.Fatalf("expected reused slot capacity 128, got %d", cap(s2.Bytes()))
	}
}

func TestRefCountKeepsBufferAlive(t *testing.T) {
	p := New(1, 64)
	s := p.Get()
	s.Retain()

	s.Release() // refs: 2 -> 1, should not reclaim yet
	select {
	case <-p.free:
		t.Fatal("buffer reclaimed while a reference was still outstanding")
	default:
	}

	s.Release() // refs: 1 -> 0, now reclaimed
	select {
	case <-p.free:
	default:
		t.Fatal("buffer was not reclaimed after last release")
	}
}

func TestHighWaterMark(t *testing.T) {
	p := New(1, 32)
	a := p.Get()
	b := p.Get() // free-list empty, forces a new allocation
	if p.HighWaterMark() < 1 {
		t.Fatalf("expected at least one allocation beyond the initial free-list, got %d", p.HighWaterMark())
	}
	a.Release()
	b.Release()
}
