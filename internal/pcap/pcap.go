// Package pcap implements MXP's best-effort debug packet dump, bound
// to a Config's PcapInPath/PcapOutPath fields. The wire format
// (libpcap's classic 24-byte global header plus a 16-byte per-record
// header) and the write-only, never-block-the-hot-path posture follow
// a conventional libpcap recorder.
package pcap

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	magic        uint32 = 0xa1b2c3d4
	versionMajor uint16 = 2
	versionMinor uint16 = 4
	snapLen      uint32 = 65535
	linkTypeRaw  uint32 = 101
)

// Sink is a thread-safe, write-only PCAP recorder. A failed write is
// logged and otherwise ignored: the debug dump must never be allowed
// to slow down or fail the packet engine's hot path.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

// Create opens (truncating) a PCAP file at path and writes its global
// header.
func Create(path string, logger zerolog.Logger) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &Sink{file: f, logger: logger}
	if err := s.writeGlobalHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) writeGlobalHeader() error {
	var hdr [24]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:6], versionMajor)
	binary.LittleEndian.PutUint16(hdr[6:8], versionMinor)
	binary.LittleEndian.PutUint32(hdr[8:12], 0)  // thiszone
	binary.LittleEndian.PutUint32(hdr[12:16], 0) // sigfigs
	binary.LittleEndian.PutUint32(hdr[16:20], snapLen)
	binary.LittleEndian.PutUint32(hdr[20:24], linkTypeRaw)
	_, err := s.file.Write(hdr[:])
	return err
}

// Record appends one packet with the current timestamp, truncating to
// snapLen if the packet is larger. Errors are logged, never returned:
// callers on the packet engine's inbound/outbound path must not stall
// or fail because the debug dump couldn't be written.
func (s *Sink) Record(packet []byte) {
	if err := s.record(packet, time.Now()); err != nil {
		s.logger.Debug().Err(err).Msg("pcap: record failed")
	}
}

func (s *Sink) record(packet []byte, now time.Time) error {
	length := uint32(len(packet))
	if length > snapLen {
		length = snapLen
	}
	secs := uint32(now.Unix())
	micros := uint32(now.Nanosecond() / 1000)

	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:4], secs)
	binary.LittleEndian.PutUint32(hdr[4:8], micros)
	binary.LittleEndian.PutUint32(hdr[8:12], length)
	binary.LittleEndian.PutUint32(hdr[12:16], length)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.file.Write(packet[:length]); err != nil {
		return err
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
