// Package packet implements the per-packet wire envelope: the 32-byte
// header carrying connection id and encrypted packet number, AEAD
// sealing and opening of the frame payload under session keys, and the
// header-protection pass that keeps the packet number from appearing
// in the clear.
package packet

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of an encoded packet header, mirroring
// the wire header in internal/wire but scoped to one encrypted packet
// rather than one logical message.
const HeaderSize = 32

// NonceSize is the width of the AEAD nonce carried in the header.
const NonceSize = 12

// Flags describes packet-level semantics distinct from the message
// flags in internal/wire.
type Flags uint8

const (
	FlagHandshake   Flags = 1 << 0
	FlagAckEliciting Flags = 1 << 1
	FlagAck         Flags = 1 << 2
	FlagKeyPhase    Flags = 1 << 3
	FlagProbe       Flags = 1 << 4
)

// Has reports whether f includes flag.
func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Header is the fixed-size envelope prepended to every encrypted
// packet. PacketNumber and Flags are transmitted under header
// protection; ConnID, PayloadLen, and Nonce travel in the clear so a
// receiver can demultiplex a packet to a connection before it has
// negotiated (or even knows) which keys to try.
type Header struct {
	ConnID       uint64
	PacketNumber uint64
	Flags        Flags
	PayloadLen   uint16
	Nonce        [NonceSize]byte
}

// headerProtectOffset and headerProtectLen bound the masked region of
// an encoded header: the 8-byte PacketNumber at offset 8 plus the
// 1-byte Flags field immediately after it. ConnID, PayloadLen, and
// Nonce sit outside this range and are never masked.
const (
	headerProtectOffset = 8
	headerProtectLen    = 9
)

// Encode writes h into dst, which must be at least HeaderSize bytes.
func Encode(h Header, dst []byte) error {
	if len(dst) < HeaderSize {
		return fmt.Errorf("packet: buffer too small: need %d bytes, got %d", HeaderSize, len(dst))
	}
	for i := 0; i < HeaderSize; i++ {
		dst[i] = 0
	}
	binary.LittleEndian.PutUint64(dst[0:8], h.ConnID)
	binary.LittleEndian.PutUint64(dst[8:16], h.PacketNumber)
	dst[16] = byte(h.Flags)
	// dst[17] is reserved and must remain zero.
	binary.LittleEndian.PutUint16(dst[18:20], h.PayloadLen)
	copy(dst[20:32], h.Nonce[:])
	return nil
}

// DecodeConnID reads just the connection id out of an encoded header,
// without removing header protection — ConnID is never masked, so a
// listener can demultiplex an inbound packet to a connection before it
// knows, or even has, that connection's keys.
func DecodeConnID(src []byte) (uint64, bool) {
	if len(src) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(src[0:8]), true
}

// Decode parses a header out of src, which must be at least HeaderSize
// bytes and must already have had header protection removed.
func Decode(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("packet: buffer too small: need %d bytes, got %d", HeaderSize, len(src))
	}
	if src[17] != 0 {
		return Header{}, fmt.Errorf("packet: reserved byte set: %#02x", src[17])
	}
	var h Header
	h.ConnID = binary.LittleEndian.Uint64(src[0:8])
	h.PacketNumber = binary.LittleEndian.Uint64(src[8:16])
	h.Flags = Flags(src[16])
	h.PayloadLen = binary.LittleEndian.Uint16(src[18:20])
	copy(h.Nonce[:], src[20:32])
	return h, nil
}
