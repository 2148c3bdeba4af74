// Package frame implements the inner frames carried inside a packet's
// AEAD-protected plaintext. Frames are
// self-delimited (length-prefixed) tagged variants; each frame's start
// offset within a packet payload is 8-byte aligned so that a corrupt or
// truncated frame cannot desynchronize the parser mid-packet.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Type tags a frame variant on the wire.
type Type uint8

const (
	TypeStreamOpen        Type = 0x01
	TypeStreamData        Type = 0x02
	TypeStreamFin         Type = 0x03
	TypeDatagram          Type = 0x04
	TypeAck               Type = 0x05
	TypeCrypto            Type = 0x06
	TypeControl           Type = 0x07
	TypeStreamMaxData     Type = 0x08
	TypeConnectionMaxData Type = 0x09
	TypePing              Type = 0x0A
)

// Frame is implemented by every frame variant. Encode appends the
// frame's wire form (tag + body, unaligned) to dst and returns the
// result. Decode parses a single frame from the front of src and
// returns the number of bytes consumed (unaligned, i.e. exactly the
// frame's own length with no padding).
type Frame interface {
	Type() Type
	Encode(dst []byte) []byte
}

// Align rounds n up to the next multiple of 8, per the packet payload's
// 8-byte alignment invariant.
func Align(n int) int {
	return (n + 7) &^ 7
}

// StreamOpen announces a new stream and its scheduling priority.
type StreamOpen struct {
	StreamID uint64
	Priority uint8
}

func (f StreamOpen) Type() Type { return TypeStreamOpen }

func (f StreamOpen) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeStreamOpen))
	dst = appendUint64(dst, f.StreamID)
	dst = append(dst, f.Priority)
	return dst
}

func decodeStreamOpen(body []byte) (StreamOpen, int, error) {
	if len(body) < 9 {
		return StreamOpen{}, 0, errTruncated("StreamOpen", 9, len(body))
	}
	return StreamOpen{
		StreamID: binary.LittleEndian.Uint64(body[0:8]),
		Priority: body[8],
	}, 9, nil
}

// StreamData carries a contiguous run of reliable stream bytes at a
// given offset, optionally marking the stream's final length (fin).
type StreamData struct {
	StreamID uint64
	Offset   uint64
	Data     []byte
	Fin      bool
}

func (f StreamData) Type() Type { return TypeStreamData }

func (f StreamData) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeStreamData))
	dst = appendUint64(dst, f.StreamID)
	dst = appendUint64(dst, f.Offset)
	finByte := byte(0)
	if f.Fin {
		finByte = 1
	}
	dst = append(dst, finByte)
	dst = appendUint32(dst, uint32(len(f.Data)))
	dst = append(dst, f.Data...)
	return dst
}

func decodeStreamData(body []byte) (StreamData, int, error) {
	const fixed = 8 + 8 + 1 + 4
	if len(body) < fixed {
		return StreamData{}, 0, errTruncated("StreamData", fixed, len(body))
	}
	streamID := binary.LittleEndian.Uint64(body[0:8])
	offset := binary.LittleEndian.Uint64(body[8:16])
	fin := body[16] != 0
	dataLen := int(binary.LittleEndian.Uint32(body[17:21]))
	if len(body) < fixed+dataLen {
		return StreamData{}, 0, errTruncated("StreamData.Data", fixed+dataLen, len(body))
	}
	data := body[fixed : fixed+dataLen]
	return StreamData{StreamID: streamID, Offset: offset, Data: data, Fin: fin}, fixed + dataLen, nil
}

// StreamFin marks a stream as finished with no accompanying data.
type StreamFin struct {
	StreamID uint64
}

func (f StreamFin) Type() Type { return TypeStreamFin }

func (f StreamFin) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeStreamFin))
	return appendUint64(dst, f.StreamID)
}

func decodeStreamFin(body []byte) (StreamFin, int, error) {
	if len(body) < 8 {
		return StreamFin{}, 0, errTruncated("StreamFin", 8, len(body))
	}
	return StreamFin{StreamID: binary.LittleEndian.Uint64(body[0:8])}, 8, nil
}

// Datagram carries unreliable, unordered payload bytes.
type Datagram struct {
	Data []byte
}

func (f Datagram) Type() Type { return TypeDatagram }

func (f Datagram) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeDatagram))
	dst = appendUint32(dst, uint32(len(f.Data)))
	return append(dst, f.Data...)
}

func decodeDatagram(body []byte) (Datagram, int, error) {
	if len(body) < 4 {
		return Datagram{}, 0, errTruncated("Datagram", 4, len(body))
	}
	dataLen := int(binary.LittleEndian.Uint32(body[0:4]))
	if len(body) < 4+dataLen {
		return Datagram{}, 0, errTruncated("Datagram.Data", 4+dataLen, len(body))
	}
	return Datagram{Data: body[4 : 4+dataLen]}, 4 + dataLen, nil
}

// AckRange is one [largest, length] run of consecutively acknowledged
// packet numbers within an Ack frame's descending range list.
type AckRange struct {
	Largest uint64
	Length  uint64 // number of packet numbers covered, inclusive of Largest
	Gap     uint64 // unacknowledged packet numbers between the previous (higher) range's lowest and Largest, 0 for the first range
}

// Ack carries selective acknowledgment ranges plus the delay between
// receipt of the largest acknowledged packet and emission of this ACK.
type Ack struct {
	Ranges   []AckRange
	AckDelay uint64 // microseconds
}

func (f Ack) Type() Type { return TypeAck }

func (f Ack) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeAck))
	dst = appendUint64(dst, f.AckDelay)
	dst = append(dst, byte(len(f.Ranges)))
	for _, r := range f.Ranges {
		dst = appendUint64(dst, r.Largest)
		dst = appendUint64(dst, r.Length)
		dst = appendUint64(dst, r.Gap)
	}
	return dst
}

func decodeAck(body []byte) (Ack, int, error) {
	if len(body) < 9 {
		return Ack{}, 0, errTruncated("Ack", 9, len(body))
	}
	ackDelay := binary.LittleEndian.Uint64(body[0:8])
	count := int(body[8])
	off := 9
	need := off + count*24
	if len(body) < need {
		return Ack{}, 0, errTruncated("Ack.Ranges", need, len(body))
	}
	ranges := make([]AckRange, count)
	for i := 0; i < count; i++ {
		ranges[i] = AckRange{
			Largest: binary.LittleEndian.Uint64(body[off : off+8]),
			Length:  binary.LittleEndian.Uint64(body[off+8 : off+16]),
			Gap:     binary.LittleEndian.Uint64(body[off+16 : off+24]),
		}
		off += 24
	}
	return Ack{Ranges: ranges, AckDelay: ackDelay}, off, nil
}

// Crypto carries a chunk of the handshake transcript at a given offset
// within the CRYPTO stream.
type Crypto struct {
	Offset uint64
	Data   []byte
}

func (f Crypto) Type() Type { return TypeCrypto }

func (f Crypto) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeCrypto))
	dst = appendUint64(dst, f.Offset)
	dst = appendUint32(dst, uint32(len(f.Data)))
	return append(dst, f.Data...)
}

func decodeCrypto(body []byte) (Crypto, int, error) {
	if len(body) < 12 {
		return Crypto{}, 0, errTruncated("Crypto", 12, len(body))
	}
	offset := binary.LittleEndian.Uint64(body[0:8])
	dataLen := int(binary.LittleEndian.Uint32(body[8:12]))
	if len(body) < 12+dataLen {
		return Crypto{}, 0, errTruncated("Crypto.Data", 12+dataLen, len(body))
	}
	return Crypto{Offset: offset, Data: body[12 : 12+dataLen]}, 12 + dataLen, nil
}

// ControlSubtype enumerates Control frame purposes.
type ControlSubtype uint8

const (
	ControlClose  ControlSubtype = 0x01
	ControlResume ControlSubtype = 0x02
	ControlReset  ControlSubtype = 0x03
)

// Control carries an out-of-band signal (connection close, session
// resumption, stream reset) with a subtype-specific payload.
type Control struct {
	Subtype ControlSubtype
	Data    []byte
}

func (f Control) Type() Type { return TypeControl }

func (f Control) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeControl))
	dst = append(dst, byte(f.Subtype))
	dst = appendUint16(dst, uint16(len(f.Data)))
	return append(dst, f.Data...)
}

func decodeControl(body []byte) (Control, int, error) {
	if len(body) < 3 {
		return Control{}, 0, errTruncated("Control", 3, len(body))
	}
	subtype := ControlSubtype(body[0])
	dataLen := int(binary.LittleEndian.Uint16(body[1:3]))
	if len(body) < 3+dataLen {
		return Control{}, 0, errTruncated("Control.Data", 3+dataLen, len(body))
	}
	return Control{Subtype: subtype, Data: body[3 : 3+dataLen]}, 3 + dataLen, nil
}

// StreamMaxData advances a per-stream flow-control credit.
type StreamMaxData struct {
	StreamID uint64
	Limit    uint64
}

func (f StreamMaxData) Type() Type { return TypeStreamMaxData }

func (f StreamMaxData) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeStreamMaxData))
	dst = appendUint64(dst, f.StreamID)
	return appendUint64(dst, f.Limit)
}

func decodeStreamMaxData(body []byte) (StreamMaxData, int, error) {
	if len(body) < 16 {
		return StreamMaxData{}, 0, errTruncated("StreamMaxData", 16, len(body))
	}
	return StreamMaxData{
		StreamID: binary.LittleEndian.Uint64(body[0:8]),
		Limit:    binary.LittleEndian.Uint64(body[8:16]),
	}, 16, nil
}

// ConnectionMaxData advances the connection-level flow-control credit.
type ConnectionMaxData struct {
	Limit uint64
}

func (f ConnectionMaxData) Type() Type { return TypeConnectionMaxData }

func (f ConnectionMaxData) Encode(dst []byte) []byte {
	dst = append(dst, byte(TypeConnectionMaxData))
	return appendUint64(dst, f.Limit)
}

func decodeConnectionMaxData(body []byte) (ConnectionMaxData, int, error) {
	if len(body) < 8 {
		return ConnectionMaxData{}, 0, errTruncated("ConnectionMaxData", 8, len(body))
	}
	return ConnectionMaxData{Limit: binary.LittleEndian.Uint64(body[0:8])}, 8, nil
}

// Ping is an empty ack-eliciting frame used by the reliability engine
// to probe for loss when there is no application data to retransmit.
type Ping struct{}

func (f Ping) Type() Type { return TypePing }

func (f Ping) Encode(dst []byte) []byte {
	return append(dst, byte(TypePing))
}

func errTruncated(what string, need, got int) error {
	return fmt.Errorf("frame: %s truncated: need %d bytes, have %d", what, need, got)
}

func appendUint16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

func appendUint32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendUint64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}
