package streams

import (
	"fmt"
	"sort"
)

// RecvState is the receiver side of a stream's lifecycle: Recv is
// collecting data of unknown total length, SizeKnown
// means a FIN has fixed the final offset, DataRecvd means every byte
// up to that offset has arrived, and DataRead means the application
// has consumed it all.
type RecvState uint8

const (
	RecvStateRecv RecvState = iota
	RecvStateSizeKnown
	RecvStateDataRecvd
	RecvStateDataRead
	RecvStateResetRecvd
)

func (s RecvState) String() string {
	switch s {
	case RecvStateRecv:
		return "Recv"
	case RecvStateSizeKnown:
		return "SizeKnown"
	case RecvStateDataRecvd:
		return "DataRecvd"
	case RecvStateDataRead:
		return "DataRead"
	case RecvStateResetRecvd:
		return "ResetRecvd"
	default:
		return "Unknown"
	}
}

type pendingChunk struct {
	offset uint64
	data   []byte
}

// RecvBuffer reassembles out-of-order stream data into a contiguous,
// readable byte sequence by holding out-of-window fragments in a
// gap list keyed by offset until the gap before them closes.
type RecvBuffer struct {
	state          RecvState
	deliveredOffset uint64
	ready          []byte
	pending        []pendingChunk
	finalOffset    uint64
	haveFinal      bool
}

// NewRecvBuffer creates an empty receive buffer in RecvStateRecv.
func NewRecvBuffer() *RecvBuffer {
	return &RecvBuffer{state: RecvStateRecv}
}

// State reports the buffer's current lifecycle state.
func (b *RecvBuffer) State() RecvState { return b.state }

// NextOffset returns the offset immediately after the last byte
// currently in the contiguous ready run, i.e. where a fin with no
// accompanying data would land.
func (b *RecvBuffer) NextOffset() uint64 { return b.deliveredOffset + uint64(len(b.ready)) }

// Len reports how many bytes are currently ready to Read without
// blocking.
func (b *RecvBuffer) Len() int { return len(b.ready) }

// Ingest records data arriving at offset, promoting it and any
// contiguous pending fragments into the ready queue.
func (b *RecvBuffer) Ingest(offset uint64, data []byte, fin bool) error {
	if b.state == RecvStateResetRecvd {
		return fmt.Errorf("streams: data after stream reset")
	}
	if b.haveFinal {
		end := offset + uint64(len(data))
		if end > b.finalOffset {
			return fmt.Errorf("streams: data beyond final offset %d", b.finalOffset)
		}
	}
	if len(data) == 0 && !fin {
		return nil
	}

	if err := b.insertPending(offset, data); err != nil {
		return err
	}

	if fin {
		end := offset + uint64(len(data))
		if !b.haveFinal || end > b.finalOffset {
			b.finalOffset = end
			b.haveFinal = true
		}
		if b.state == RecvStateRecv {
			b.state = RecvStateSizeKnown
		}
	}

	b.promotePending()

	if b.haveFinal && b.deliveredOffset+uint64(len(b.ready)) >= b.finalOffset {
		if b.state == RecvStateSizeKnown {
			b.state = RecvStateDataRecvd
		}
	}

	return nil
}

func (b *RecvBuffer) insertPending(offset uint64, data []byte) error {
	for _, p := range b.pending {
		if p.offset == offset {
			if string(p.data) != string(data) {
				return fmt.Errorf("streams: conflicting data at offset %d", offset)
			}
			return nil
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.pending = append(b.pending, pendingChunk{offset: offset, data: cp})
	sort.Slice(b.pending, func(i, j int) bool { return b.pending[i].offset < b.pending[j].offset })
	return nil
}

func (b *RecvBuffer) promotePending() {
	for len(b.pending) > 0 {
		next := b.deliveredOffset + uint64(len(b.ready))
		head := b.pending[0]
		if head.offset != next {
			break
		}
		b.ready = append(b.ready, head.data...)
		b.pending = b.pending[1:]
	}
}

// Read drains up to maxLen ready bytes, returning them and advancing
// the delivered offset. Once every byte up to the final offset has
// been read, the buffer transitions to RecvStateDataRead.
func (b *RecvBuffer) Read(maxLen int) []byte {
	take := len(b.ready)
	if take > maxLen {
		take = maxLen
	}
	out := make([]byte, take)
	copy(out, b.ready[:take])
	b.ready = b.ready[take:]
	b.deliveredOffset += uint64(take)

	if b.state == RecvStateDataRecvd && len(b.ready) == 0 {
		b.state = RecvStateDataRead
	}
	return out
}

// Reset marks the stream as abandoned by the peer.
func (b *RecvBuffer) Reset() {
	b.ready = nil
	b.pending = nil
	b.state = RecvStateResetRecvd
}

// ReceivedFin reports whether a final offset has been established.
func (b *RecvBuffer) ReceivedFin() bool { return b.haveFinal }
