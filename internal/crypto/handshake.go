package crypto

import (
	"fmt"

	"golang.org/x/crypto/hkdf"
	"crypto/sha256"
	"io"
)

// State is the handshake's lifecycle.
type State int

const (
	StateInitial State = iota
	StateHandshaking
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateHandshaking:
		return "Handshaking"
	case StateEstablished:
		return "Established"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// DirectionalKeys holds the AEAD key, nonce IV, and header-protection
// key derived for one direction of traffic.
type DirectionalKeys struct {
	Suite AEADSuite
	Key   [32]byte
	IV    [12]byte
	HP    [32]byte
}

// SessionKeys bundles the two directional key sets produced once a
// handshake completes.
type SessionKeys struct {
	Initiator2Responder DirectionalKeys
	Responder2Initiator DirectionalKeys
}

// Handshake drives one side (initiator or responder) of the three-flight
// Noise-IK-style exchange over Crypto frames. It is not safe for
// concurrent use; the owning Connection serializes calls to it from its
// single event loop.
type Handshake struct {
	isInitiator bool
	state       State
	suite       AEADSuite

	chain *chain

	localStatic  KeyPair
	localEph     KeyPair
	remoteStatic [32]byte
	remoteEph    [32]byte

	k1 [32]byte // es-derived key for message 1/2 static-identity exchange
	k2 [32]byte // ee+se-derived key for message 2/3 confirmation

	Err error
}

// NewInitiator creates a Handshake for the connecting side, which must
// know the responder's static public key in advance (Noise IK).
func NewInitiator(localStatic KeyPair, remoteStaticPub [32]byte, suite AEADSuite) (*Handshake, error) {
	return &Handshake{
		isInitiator:  true,
		state:        StateInitial,
		suite:        suite,
		chain:        newChain(),
		localStatic:  localStatic,
		remoteStatic: remoteStaticPub,
	}, nil
}

// NewResponder creates a Handshake for the accepting side.
func NewResponder(localStatic KeyPair, suite AEADSuite) (*Handshake, error) {
	return &Handshake{
		isInitiator: false,
		state:       StateInitial,
		suite:       suite,
		chain:       newChain(),
		localStatic: localStatic,
	}, nil
}

// GenerateStaticKeyPair creates a long-lived X25519 identity key pair
// for use as a Handshake's localStatic. Exported so callers (e.g. a
// Connection's owner) can create and persist it once and reuse it
// across many handshakes.
func GenerateStaticKeyPair() (KeyPair, [32]byte, error) {
	kp, err := generateKeyPair()
	if err != nil {
		return KeyPair{}, [32]byte{}, err
	}
	return kp, kp.pub, nil
}

// StaticPublicKeyOf returns the 32-byte public half of a key pair, for
// out-of-band distribution: a responder's static key must be known a
// priori via registry or some other side channel.
func StaticPublicKeyOf(kp KeyPair) [32]byte { return kp.pub }

// State reports the handshake's current lifecycle state.
func (h *Handshake) State() State { return h.state }

// WriteMessage1 is called by the initiator to produce the first flight:
// an ephemeral public key plus the initiator's encrypted static
// identity, authenticated under a key derived from DH(e_i, s_r).
func (h *Handshake) WriteMessage1() ([]byte, error) {
	if !h.isInitiator || h.state != StateInitial {
		return nil, fmt.Errorf("crypto: WriteMessage1 called out of sequence (state=%s, initiator=%v)", h.state, h.isInitiator)
	}

	eph, err := generateKeyPair()
	if err != nil {
		return nil, err
	}
	h.localEph = eph
	h.chain.mixHash(eph.pub[:])

	es, err := dh(eph.priv, h.remoteStatic)
	if err != nil {
		return nil, err
	}
	h.k1 = h.chain.mixKey(es)

	ciphertext, err := h.chain.encryptAndHash(h.k1, h.localStatic.pub[:])
	if err != nil {
		return nil, err
	}

	h.state = StateHandshaking

	out := make([]byte, 0, 32+len(ciphertext))
	out = append(out, eph.pub[:]...)
	out = append(out, ciphertext...)
	return out, nil
}

// ReadMessage1 is called by the responder to consume the initiator's
// first flight, recovering the initiator's static identity.
func (h *Handshake) ReadMessage1(msg []byte) error {
	if h.isInitiator || h.state != StateInitial {
		return fmt.Errorf("crypto: ReadMessage1 called out of sequence (state=%s, initiator=%v)", h.state, h.isInitiator)
	}
	if len(msg) < 32+16 {
		return fmt.Errorf("crypto: message 1 too short: %d bytes", len(msg))
	}

	copy(h.remoteEph[:], msg[:32])
	h.chain.mixHash(h.remoteEph[:])

	es, err := dh(h.localStatic.priv, h.remoteEph)
	if err != nil {
		return err
	}
	h.k1 = h.chain.mixKey(es)

	plaintext, err := h.chain.decryptAndHash(h.k1, msg[32:])
	if err != nil {
		h.state = StateClosed
		h.Err = err
		return fmt.Errorf("crypto: handshake failed decrypting identity: %w", err)
	}
	if len(plaintext) != 32 {
		h.state = StateClosed
		return fmt.Errorf("crypto: unexpected static identity length %d", len(plaintext))
	}
	copy(h.remoteStatic[:], plaintext)

	h.state = StateHandshaking
	return nil
}

// WriteMessage2 is called by the responder to produce the second
// flight: its own ephemeral key plus a zero-length confirmation AEAD
// tag authenticated under keys derived from ee and se.
func (h *Handshake) WriteMessage2() ([]byte, error) {
	if h.isInitiator || h.state != StateHandshaking {
		return nil, fmt.Errorf("crypto: WriteMessage2 called out of sequence (state=%s)", h.state)
	}

	eph, err := generateKeyPair()
	if err != nil {
		return nil, err
	}
	h.localEph = eph
	h.chain.mixHash(eph.pub[:])

	ee, err := dh(eph.priv, h.remoteEph)
	if err != nil {
		return nil, err
	}
	h.chain.mixKey(ee)

	se, err := dh(eph.priv, h.remoteStatic)
	if err != nil {
		return nil, err
	}
	h.k2 = h.chain.mixKey(se)

	confirmation, err := h.chain.encryptAndHash(h.k2, nil)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 32+len(confirmation))
	out = append(out, eph.pub[:]...)
	out = append(out, confirmation...)
	return out, nil
}

// ReadMessage2 is called by the initiator to consume the responder's
// second flight and verify the confirmation.
func (h *Handshake) ReadMessage2(msg []byte) error {
	if !h.isInitiator || h.state != StateHandshaking {
		return fmt.Errorf("crypto: ReadMessage2 called out of sequence (state=%s)", h.state)
	}
	if len(msg) < 32+16 {
		return fmt.Errorf("crypto: message 2 too short: %d bytes", len(msg))
	}

	copy(h.remoteEph[:], msg[:32])
	h.chain.mixHash(h.remoteEph[:])

	ee, err := dh(h.localEph.priv, h.remoteEph)
	if err != nil {
		return err
	}
	h.chain.mixKey(ee)

	se, err := dh(h.localStatic.priv, h.remoteEph)
	if err != nil {
		return err
	}
	h.k2 = h.chain.mixKey(se)

	if _, err := h.chain.decryptAndHash(h.k2, msg[32:]); err != nil {
		h.state = StateClosed
		h.Err = err
		return fmt.Errorf("crypto: handshake failed verifying confirmation: %w", err)
	}
	return nil
}

// WriteMessage3 is called by the initiator to produce the third,
// final flight: an AEAD tag over the accumulated transcript, proving
// the initiator also holds the keys derived in message 2.
func (h *Handshake) WriteMessage3() ([]byte, error) {
	if !h.isInitiator || h.state != StateHandshaking {
		return nil, fmt.Errorf("crypto: WriteMessage3 called out of sequence (state=%s)", h.state)
	}
	finished, err := h.chain.encryptAndHash(h.k2, nil)
	if err != nil {
		return nil, err
	}
	h.state = StateEstablished
	return finished, nil
}

// ReadMessage3 is called by the responder to consume and verify the
// initiator's finished message, completing the handshake.
func (h *Handshake) ReadMessage3(msg []byte) error {
	if h.isInitiator || h.state != StateHandshaking {
		return fmt.Errorf("crypto: ReadMessage3 called out of sequence (state=%s)", h.state)
	}
	if _, err := h.chain.decryptAndHash(h.k2, msg); err != nil {
		h.state = StateClosed
		h.Err = err
		return fmt.Errorf("crypto: handshake failed verifying transcript: %w", err)
	}
	h.state = StateEstablished
	return nil
}

// RemoteStaticKey returns the peer's verified static public key, valid
// once the handshake reaches StateHandshaking (responder) or
// StateEstablished (initiator, where it was known a priori).
func (h *Handshake) RemoteStaticKey() [32]byte { return h.remoteStatic }

// ChainingKey exposes the final Noise chaining key so a responder can
// hand it to SessionManager.Issue once the handshake reaches
// StateEstablished. Valid only at or after that point.
func (h *Handshake) ChainingKey() [32]byte { return h.chain.ck }

// DeriveSessionKeys expands the final chaining key into directional
// application keys, IVs, and header-protection keys. Must be called
// only after the handshake reaches StateEstablished.
func (h *Handshake) DeriveSessionKeys() (SessionKeys, error) {
	if h.state != StateEstablished {
		return SessionKeys{}, fmt.Errorf("crypto: DeriveSessionKeys called before handshake established (state=%s)", h.state)
	}

	i2r, err := deriveDirection(h.chain.ck, "mxp i2r", h.suite)
	if err != nil {
		return SessionKeys{}, err
	}
	r2i, err := deriveDirection(h.chain.ck, "mxp r2i", h.suite)
	if err != nil {
		return SessionKeys{}, err
	}

	return SessionKeys{Initiator2Responder: i2r, Responder2Initiator: r2i}, nil
}

func deriveDirection(ck [32]byte, label string, suite AEADSuite) (DirectionalKeys, error) {
	r := hkdf.New(sha256.New, ck[:], nil, []byte(label))
	var material [32 + 12 + 32]byte
	if _, err := io.ReadFull(r, material[:]); err != nil {
		return DirectionalKeys{}, fmt.Errorf("crypto: derive direction %q: %w", label, err)
	}
	var dk DirectionalKeys
	dk.Suite = suite
	copy(dk.Key[:], material[0:32])
	copy(dk.IV[:], material[32:44])
	copy(dk.HP[:], material[44:76])
	return dk, nil
}
