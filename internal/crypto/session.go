package crypto

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// SessionTicketLifetime bounds how long an issued ticket may be
// resumed before the responder must require a full handshake: tickets
// live at most 30 seconds.
const SessionTicketLifetime = 30 * time.Second

// SessionTicket is an opaque, responder-issued token a returning
// initiator can present to skip the three-message handshake. Unlike a
// TLS session ticket's random-nonce anti-replay, MXP tickets carry a
// monotonically increasing ID per issuing responder so a receiver can
// enforce a simple per-peer watermark instead of keeping a replay set.
type SessionTicket struct {
	TicketID  uint64
	IssuedAt  time.Time
	PSK       [32]byte // resumption pre-shared key, derived from the prior session's chaining key
	RemoteKey [32]byte // the static key of the peer this ticket was issued to
}

// Expired reports whether the ticket has outlived SessionTicketLifetime
// as of now.
func (t SessionTicket) Expired(now time.Time) bool {
	return now.Sub(t.IssuedAt) > SessionTicketLifetime
}

// Marshal encodes a ticket for transmission inside a Crypto frame.
func (t SessionTicket) Marshal() []byte {
	out := make([]byte, 8+8+32+32)
	binary.LittleEndian.PutUint64(out[0:8], t.TicketID)
	binary.LittleEndian.PutUint64(out[8:16], uint64(t.IssuedAt.Unix()))
	copy(out[16:48], t.PSK[:])
	copy(out[48:80], t.RemoteKey[:])
	return out
}

// UnmarshalSessionTicket reverses Marshal.
func UnmarshalSessionTicket(b []byte) (SessionTicket, error) {
	if len(b) < 80 {
		return SessionTicket{}, fmt.Errorf("crypto: session ticket too short: %d bytes", len(b))
	}
	var t SessionTicket
	t.TicketID = binary.LittleEndian.Uint64(b[0:8])
	t.IssuedAt = time.Unix(int64(binary.LittleEndian.Uint64(b[8:16])), 0)
	copy(t.PSK[:], b[16:48])
	copy(t.RemoteKey[:], b[48:80])
	return t, nil
}

// watermark tracks, per remote static key, the highest ticket ID a
// responder has accepted, rejecting anything at or below it as a
// replay.
type watermark struct {
	mu   sync.Mutex
	high map[[32]byte]uint64
}

// SessionManager issues resumption tickets on the responder side and
// validates them on reuse, enforcing both the lifetime bound and the
// monotonic-watermark replay rule.
type SessionManager struct {
	nextTicketID uint64
	wm           watermark

	mu sync.Mutex
}

// NewSessionManager creates an empty ticket store.
func NewSessionManager() *SessionManager {
	return &SessionManager{wm: watermark{high: make(map[[32]byte]uint64)}}
}

// Issue mints a new ticket bound to the just-completed handshake's
// chaining key, for the given peer static identity.
func (m *SessionManager) Issue(chainingKey [32]byte, remoteKey [32]byte, now time.Time) SessionTicket {
	m.mu.Lock()
	m.nextTicketID++
	id := m.nextTicketID
	m.mu.Unlock()

	psk := deriveResumptionPSK(chainingKey)
	return SessionTicket{
		TicketID:  id,
		IssuedAt:  now,
		PSK:       psk,
		RemoteKey: remoteKey,
	}
}

// Validate checks a presented ticket against expiry and the replay
// watermark, advancing the watermark on acceptance. A rejected ticket
// forces the caller back to a full handshake; it is never fatal to the
// connection attempt.
func (m *SessionManager) Validate(t SessionTicket, now time.Time) error {
	if t.Expired(now) {
		return fmt.Errorf("crypto: session ticket expired (issued %s)", t.IssuedAt)
	}

	m.wm.mu.Lock()
	defer m.wm.mu.Unlock()

	if t.TicketID <= m.wm.high[t.RemoteKey] {
		return fmt.Errorf("crypto: session ticket %d replayed (watermark %d)", t.TicketID, m.wm.high[t.RemoteKey])
	}
	m.wm.high[t.RemoteKey] = t.TicketID
	return nil
}

func deriveResumptionPSK(chainingKey [32]byte) [32]byte {
	dk, err := deriveDirection(chainingKey, "mxp resumption psk", SuiteChaCha20Poly1305)
	if err != nil {
		panic(fmt.Sprintf("crypto: derive resumption psk: %v", err))
	}
	return dk.Key
}
