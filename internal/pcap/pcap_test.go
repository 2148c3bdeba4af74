package pcap

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCreateWritesValidGlobalHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := Create(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 24 {
		t.Fatalf("expected 24-byte global header, got %d bytes", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != magic {
		t.Fatalf("bad magic: %#x", got)
	}
	if got := binary.LittleEndian.Uint16(data[4:6]); got != versionMajor {
		t.Fatalf("bad version major: %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[16:20]); got != snapLen {
		t.Fatalf("bad snaplen: %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[20:24]); got != linkTypeRaw {
		t.Fatalf("bad network: %d", got)
	}
}

func TestRecordAppendsPerPacketHeaderAndPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := Create(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	stamp := time.Unix(1_700_000_000, 123_000)
	if err := s.record(payload, stamp); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rec := data[24:]
	if len(rec) != 16+len(payload) {
		t.Fatalf("expected %d record bytes, got %d", 16+len(payload), len(rec))
	}
	if got := binary.LittleEndian.Uint32(rec[0:4]); got != uint32(stamp.Unix()) {
		t.Fatalf("bad sec: %d", got)
	}
	if got := binary.LittleEndian.Uint32(rec[8:12]); got != uint32(len(payload)) {
		t.Fatalf("bad incl_len: %d", got)
	}
	if got := binary.LittleEndian.Uint32(rec[12:16]); got != uint32(len(payload)) {
		t.Fatalf("bad orig_len: %d", got)
	}
	if string(rec[16:]) != string(payload) {
		t.Fatalf("payload mismatch: %x", rec[16:])
	}
}

func TestRecordTruncatesOversizedPacketsToSnapLen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := Create(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	big := make([]byte, snapLen+10)
	if err := s.record(big, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rec := data[24:]
	if got := binary.LittleEndian.Uint32(rec[8:12]); got != snapLen {
		t.Fatalf("expected incl_len clamped to snaplen, got %d", got)
	}
	if uint32(len(rec)-16) != snapLen {
		t.Fatalf("expected payload clamped to %d bytes, got %d", snapLen, len(rec)-16)
	}
}

func TestRecordOnClosedFileDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := Create(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.Close()

	// Record swallows the write error internally; callers on the hot
	// path must never observe a failure or a panic here.
	s.Record([]byte{1, 2, 3})
}
