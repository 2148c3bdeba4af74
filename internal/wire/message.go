package wire

// Message is a decoded MXP application-level message. Payload aliases
// the input buffer given to Decode (zero-copy); callers that retain a
// Message past the lifetime of that buffer must copy Payload
// themselves.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage builds a Message with the given type and payload; flags,
// message ID, and trace ID default to zero and can be set by the
// caller before Encode.
func NewMessage(msgType MessageType, payload []byte) *Message {
	return &Message{
		Header: Header{
			MsgType:    msgType,
			PayloadLen: uint64(len(payload)),
		},
		Payload: payload,
	}
}

func (m *Message) Type() MessageType { return m.Header.MsgType }
