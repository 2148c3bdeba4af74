package wire

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Encode serializes m to [header(32)][payload][checksum(8)], computing
// the XXH3-64 checksum over the header and payload bytes. The header's
// PayloadLen is set from len(m.Payload) regardless of what it was set
// to previously.
func Encode(m *Message) []byte {
	m.Header.PayloadLen = uint64(len(m.Payload))

	total := HeaderSize + len(m.Payload) + ChecksumSize
	buf := make([]byte, total)

	m.Header.Encode(buf[:HeaderSize])
	copy(buf[HeaderSize:HeaderSize+len(m.Payload)], m.Payload)

	checksum := xxh3.Hash(buf[:HeaderSize+len(m.Payload)])
	binary.LittleEndian.PutUint64(buf[HeaderSize+len(m.Payload):], checksum)

	return buf
}

// Decode parses a Message from src, validating the header, the length
// invariant, and the trailing checksum. The returned Message's Payload
// aliases src.
func Decode(src []byte) (*Message, error) {
	if len(src) < MinMessageSize {
		return nil, newDecodeError(LengthExceedsBuffer, "need at least %d bytes, have %d", MinMessageSize, len(src))
	}

	header, err := DecodeHeader(src[:HeaderSize])
	if err != nil {
		return nil, err
	}

	payloadLen := int(header.PayloadLen)
	total := HeaderSize + payloadLen + ChecksumSize
	if len(src) < total {
		return nil, newDecodeError(LengthExceedsBuffer, "need %d bytes, have %d", total, len(src))
	}

	checksumOffset := HeaderSize + payloadLen
	stored := binary.LittleEndian.Uint64(src[checksumOffset : checksumOffset+ChecksumSize])
	computed := xxh3.Hash(src[:checksumOffset])
	if stored != computed {
		return nil, newDecodeError(BadChecksum, "expected 0x%016X got 0x%016X", computed, stored)
	}

	payload := src[HeaderSize:checksumOffset]

	return &Message{Header: header, Payload: payload}, nil
}

// EncodedSize returns the number of bytes Encode would produce for a
// message with the given payload length.
func EncodedSize(payloadLen int) int {
	return HeaderSize + payloadLen + ChecksumSize
}
