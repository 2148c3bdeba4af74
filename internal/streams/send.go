package streams

import "fmt"

// SendState is the sender side of a stream's lifecycle: Ready holds
// data not yet sent, Send is actively transmitting, DataSent
// means every byte including the FIN has gone out at least once, and
// DataRecvd means the peer has acknowledged all of it.
type SendState uint8

const (
	SendStateReady SendState = iota
	SendStateSend
	SendStateDataSent
	SendStateDataRecvd
	SendStateResetSent
)

func (s SendState) String() string {
	switch s {
	case SendStateReady:
		return "Ready"
	case SendStateSend:
		return "Send"
	case SendStateDataSent:
		return "DataSent"
	case SendStateDataRecvd:
		return "DataRecvd"
	case SendStateResetSent:
		return "ResetSent"
	default:
		return "Unknown"
	}
}

// Chunk is a contiguous slice of stream data ready for framing.
type Chunk struct {
	Offset  uint64
	Payload []byte
	Fin     bool
}

// SendBuffer queues outbound bytes for one stream and slices them into
// Chunks as the scheduler asks for data.
type SendBuffer struct {
	state      SendState
	buffer     []byte
	finQueued  bool
	finSent    bool
	ackedUpTo  uint64
	nextOffset uint64
}

// NewSendBuffer creates an empty send buffer in SendStateReady.
func NewSendBuffer() *SendBuffer {
	return &SendBuffer{state: SendStateReady}
}

// State reports the buffer's current lifecycle state.
func (b *SendBuffer) State() SendState { return b.state }

// Write appends data to the buffer, failing if the stream has already
// been finished or reset locally.
func (b *SendBuffer) Write(data []byte) error {
	if b.finQueued {
		return fmt.Errorf("streams: write after stream finished")
	}
	if b.state == SendStateResetSent {
		return fmt.Errorf("streams: write after stream reset")
	}
	b.buffer = append(b.buffer, data...)
	if b.state == SendStateReady && len(b.buffer) > 0 {
		b.state = SendStateSend
	}
	return nil
}

// Finish marks the buffer as having no more data beyond what has
// already been written.
func (b *SendBuffer) Finish() error {
	if b.finQueued {
		return fmt.Errorf("streams: stream already finished locally")
	}
	b.finQueued = true
	return nil
}

// Reset abandons the stream, discarding unsent data.
func (b *SendBuffer) Reset() {
	b.buffer = nil
	b.state = SendStateResetSent
}

// NextChunk slices up to maxLen unsent bytes off the front of the
// buffer, advancing to SendStateDataSent once the FIN chunk goes out.
func (b *SendBuffer) NextChunk(maxLen int) (Chunk, bool) {
	if b.state == SendStateResetSent || b.state == SendStateDataSent || b.state == SendStateDataRecvd {
		return Chunk{}, false
	}
	if len(b.buffer) == 0 && (b.finSent || !b.finQueued) {
		return Chunk{}, false
	}

	take := len(b.buffer)
	if take > maxLen {
		take = maxLen
	}
	payload := b.buffer[:take]
	b.buffer = b.buffer[take:]

	fin := len(b.buffer) == 0 && b.finQueued && !b.finSent
	if fin {
		b.finSent = true
		b.state = SendStateDataSent
	}

	offset := b.nextOffset
	b.nextOffset += uint64(take)

	out := Chunk{Offset: offset, Payload: payload, Fin: fin}
	return out, true
}

// OnAcked records that the peer has acknowledged up through ackedTo
// (exclusive of anything already known acked). Once every byte,
// including the FIN if sent, has been acknowledged, the buffer
// transitions to SendStateDataRecvd.
func (b *SendBuffer) OnAcked(ackedTo uint64) {
	if ackedTo > b.ackedUpTo {
		b.ackedUpTo = ackedTo
	}
	if b.finSent && b.ackedUpTo >= b.nextOffset {
		b.state = SendStateDataRecvd
	}
}

// IsDrained reports whether there is nothing left to send.
func (b *SendBuffer) IsDrained() bool {
	return len(b.buffer) == 0 && (!b.finQueued || b.finSent)
}
