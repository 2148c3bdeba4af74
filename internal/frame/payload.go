package frame

import "fmt"

// EncodeAll serializes frames into a single packet payload, padding
// each frame's wire form up to the next 8-byte boundary before the
// next frame begins.
func EncodeAll(frames []Frame) []byte {
	var out []byte
	for _, f := range frames {
		start := len(out)
		out = f.Encode(out)
		aligned := start + Align(len(out)-start)
		for len(out) < aligned {
			out = append(out, 0)
		}
	}
	return out
}

// DecodeAll parses every frame out of a packet payload previously
// produced by EncodeAll. A malformed frame anywhere in the payload
// fails the whole payload: the packet is dropped, treating malformed
// input as non-fatal to the connection but fatal to that one packet.
func DecodeAll(payload []byte) ([]Frame, error) {
	var frames []Frame
	off := 0
	for off < len(payload) {
		f, consumed, err := decodeOne(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("frame: at offset %d: %w", off, err)
		}
		frames = append(frames, f)
		next := off + Align(consumed)
		if next > len(payload) {
			return nil, fmt.Errorf("frame: at offset %d: alignment padding truncated", off)
		}
		off = next
	}
	return frames, nil
}

func decodeOne(body []byte) (Frame, int, error) {
	if len(body) == 0 {
		return nil, 0, fmt.Errorf("frame: empty body")
	}
	tag := Type(body[0])
	rest := body[1:]

	switch tag {
	case TypeStreamOpen:
		f, n, err := decodeStreamOpen(rest)
		return f, n + 1, err
	case TypeStreamData:
		f, n, err := decodeStreamData(rest)
		return f, n + 1, err
	case TypeStreamFin:
		f, n, err := decodeStreamFin(rest)
		return f, n + 1, err
	case TypeDatagram:
		f, n, err := decodeDatagram(rest)
		return f, n + 1, err
	case TypeAck:
		f, n, err := decodeAck(rest)
		return f, n + 1, err
	case TypeCrypto:
		f, n, err := decodeCrypto(rest)
		return f, n + 1, err
	case TypeControl:
		f, n, err := decodeControl(rest)
		return f, n + 1, err
	case TypeStreamMaxData:
		f, n, err := decodeStreamMaxData(rest)
		return f, n + 1, err
	case TypeConnectionMaxData:
		f, n, err := decodeConnectionMaxData(rest)
		return f, n + 1, err
	case TypePing:
		return Ping{}, 1, nil
	default:
		return nil, 0, fmt.Errorf("frame: unknown frame type 0x%02X", tag)
	}
}
