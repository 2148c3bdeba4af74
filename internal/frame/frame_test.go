package frame

import (
	"bytes"
	"testing"
)

func TestRoundTripAllVariants(t *testing.T) {
	frames := []Frame{
		StreamOpen{StreamID: 4, Priority: 2},
		StreamData{StreamID: 4, Offset: 0, Data: []byte("hello"), Fin: false},
		StreamFin{StreamID: 4},
		Datagram{Data: []byte("unreliable")},
		Ack{AckDelay: 1234, Ranges: []AckRange{{Largest: 100, Length: 10, Gap: 0}, {Largest: 80, Length: 5, Gap: 5}}},
		Crypto{Offset: 0, Data: []byte("handshake-bytes")},
		Control{Subtype: ControlClose, Data: []byte{0x01}},
		StreamMaxData{StreamID: 4, Limit: 65536},
		ConnectionMaxData{Limit: 1 << 20},
		Ping{},
	}

	encoded := EncodeAll(frames)
	if len(encoded)%8 != 0 {
		t.Fatalf("encoded payload not 8-byte aligned: %d bytes", len(encoded))
	}

	decoded, err := DecodeAll(encoded)
	if err != nil {
		t.Fatalf("DecodeAll failed: %v", err)
	}
	if len(decoded) != len(frames) {
		t.Fatalf("frame count mismatch: got %d, want %d", len(decoded), len(frames))
	}

	for i, f := range frames {
		if decoded[i].Type() != f.Type() {
			t.Errorf("frame %d: type mismatch: got %v, want %v", i, decoded[i].Type(), f.Type())
		}
	}

	sd, ok := decoded[1].(StreamData)
	if !ok || !bytes.Equal(sd.Data, []byte("hello")) {
		t.Errorf("StreamData payload mismatch: %+v", decoded[1])
	}

	ack, ok := decoded[4].(Ack)
	if !ok || len(ack.Ranges) != 2 || ack.Ranges[1].Gap != 5 {
		t.Errorf("Ack ranges mismatch: %+v", decoded[4])
	}
}

func TestDecodeAllTruncatedFrame(t *testing.T) {
	encoded := EncodeAll([]Frame{StreamFin{StreamID: 9}})
	_, err := DecodeAll(encoded[:len(encoded)-4])
	if err == nil {
		t.Fatal("expected error decoding truncated payload")
	}
}

func TestAlignment(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16}
	for in, want := range cases {
		if got := Align(in); got != want {
			t.Errorf("Align(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEmptyPayloadDecodesToNoFrames(t *testing.T) {
	frames, err := DecodeAll(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
}
