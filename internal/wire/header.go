package wire

import "encoding/binary"

// Header is the 32-byte MXP message header, little-endian on the wire.
//
//	0        4    5      6        8              16             24             32
//	| magic  |type|flags |reserved|  message_id  |   trace_id   | payload_len  |
type Header struct {
	MsgType    MessageType
	Flags      Flags
	MessageID  uint64
	TraceID    uint64
	PayloadLen uint64
}

// Encode writes the 32-byte on-wire form of h into dst, which must be at
// least HeaderSize bytes.
func (h Header) Encode(dst []byte) {
	_ = dst[:HeaderSize]
	binary.LittleEndian.PutUint32(dst[0:4], MagicNumber)
	dst[4] = byte(h.MsgType)
	dst[5] = byte(h.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], 0)
	binary.LittleEndian.PutUint64(dst[8:16], h.MessageID)
	binary.LittleEndian.PutUint64(dst[16:24], h.TraceID)
	binary.LittleEndian.PutUint64(dst[24:32], h.PayloadLen)
}

// DecodeHeader parses and validates a 32-byte header from src.
func DecodeHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, newDecodeError(LengthExceedsBuffer, "need %d bytes, have %d", HeaderSize, len(src))
	}

	magic := binary.LittleEndian.Uint32(src[0:4])
	if magic != MagicNumber {
		return Header{}, newDecodeError(BadMagic, "found 0x%08X", magic)
	}

	msgType := MessageType(src[4])
	if !msgType.Known() {
		return Header{}, newDecodeError(UnknownType, "type byte 0x%02X", src[4])
	}

	flags := Flags(src[5])
	if !flags.Valid() {
		return Header{}, newDecodeError(InvalidFlags, "flags byte 0x%02X", src[5])
	}

	reserved := binary.LittleEndian.Uint16(src[6:8])
	if reserved != 0 {
		return Header{}, newDecodeError(ReservedNonZero, "reserved=0x%04X", reserved)
	}

	payloadLen := binary.LittleEndian.Uint64(src[24:32])
	if payloadLen > MaxPayloadSize {
		return Header{}, newDecodeError(LengthExceedsMax, "payload_len=%d max=%d", payloadLen, MaxPayloadSize)
	}

	return Header{
		MsgType:    msgType,
		Flags:      flags,
		MessageID:  binary.LittleEndian.Uint64(src[8:16]),
		TraceID:    binary.LittleEndian.Uint64(src[16:24]),
		PayloadLen: payloadLen,
	}, nil
}
