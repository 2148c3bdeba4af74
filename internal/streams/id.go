// Package streams implements MXP's per-stream send and receive state
// machines, offset-ordered reassembly, and the connection-wide stream
// registry that hands out identifiers.
package streams

// Role records which endpoint initiated a stream.
type Role uint64

const (
	RoleClient Role = 0
	RoleServer Role = 1
)

// Kind distinguishes bidirectional streams from send/receive-only ones.
type Kind uint64

const (
	KindBidirectional  Kind = 0
	KindUnidirectional Kind = 1
)

// ID packs a monotonic per-endpoint sequence number together with the
// initiating role and stream kind into a single wire value, the same
// two-low-bits convention QUIC uses for its stream IDs.
type ID uint64

// NewID composes a stream ID from its constituent fields.
func NewID(role Role, kind Kind, index uint64) ID {
	return ID((index << 2) | (uint64(role) << 1) | uint64(kind))
}

// Index returns the sequence number encoded in the ID.
func (id ID) Index() uint64 { return uint64(id) >> 2 }

// Role returns the initiating endpoint.
func (id ID) Role() Role { return Role((uint64(id) >> 1) & 1) }

// Kind returns the stream's directionality.
func (id ID) Kind() Kind { return Kind(uint64(id) & 1) }

// IsLocallyInitiated reports whether local originated this stream.
func (id ID) IsLocallyInitiated(local Role) bool { return id.Role() == local }
