package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const protocolName = "Noise_IK_25519_ChaChaPoly_SHA256"

// chain is the Noise symmetric state: a chaining key and a running
// transcript hash, updated by every DH output and every message sent
// or received, via HKDF-SHA256 mix operations.
type chain struct {
	ck [32]byte // chaining key
	h  [32]byte // transcript hash
}

func newChain() *chain {
	c := &chain{}
	sum := sha256.Sum256([]byte(protocolName))
	copy(c.ck[:], sum[:])
	c.h = c.ck
	return c
}

// mixHash folds data into the transcript hash.
func (c *chain) mixHash(data []byte) {
	h := sha256.New()
	h.Write(c.h[:])
	h.Write(data)
	copy(c.h[:], h.Sum(nil))
}

// mixKey performs an HKDF-Extract-and-Expand step over the chaining key
// and a DH output, returning a fresh 32-byte key and updating ck in
// place (Noise's MixKey).
func (c *chain) mixKey(ikm []byte) [32]byte {
	r := hkdf.New(sha256.New, ikm, c.ck[:], []byte("mxp-ck"))
	var out [64]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		panic(fmt.Sprintf("crypto: hkdf expand failed: %v", err))
	}
	copy(c.ck[:], out[:32])
	var key [32]byte
	copy(key[:], out[32:])
	return key
}

// KeyPair is an ephemeral or static X25519 key pair.
type KeyPair struct {
	priv *ecdh.PrivateKey
	pub  [32]byte
}

func generateKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("crypto: generate x25519 key: %w", err)
	}
	var pub [32]byte
	copy(pub[:], priv.PublicKey().Bytes())
	return KeyPair{priv: priv, pub: pub}, nil
}

func parsePublicKey(b [32]byte) (*ecdh.PublicKey, error) {
	pk, err := ecdh.X25519().NewPublicKey(b[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid x25519 public key: %w", err)
	}
	return pk, nil
}

func dh(priv *ecdh.PrivateKey, peer [32]byte) ([]byte, error) {
	pk, err := parsePublicKey(peer)
	if err != nil {
		return nil, err
	}
	shared, err := priv.ECDH(pk)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecdh: %w", err)
	}
	return shared, nil
}

// encryptAndHash seals plaintext under key (zero nonce, since each
// Noise message uses a fresh key) with the running transcript hash as
// associated data, then mixes the ciphertext into the transcript.
func (c *chain) encryptAndHash(key [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := NewAEAD(SuiteChaCha20Poly1305, key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	ciphertext := aead.Seal(nil, nonce, plaintext, c.h[:])
	c.mixHash(ciphertext)
	return ciphertext, nil
}

func (c *chain) decryptAndHash(key [32]byte, ciphertext []byte) ([]byte, error) {
	aead, err := NewAEAD(SuiteChaCha20Poly1305, key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	plaintext, err := aead.Open(nil, nonce, ciphertext, c.h[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: aead open failed: %w", err)
	}
	c.mixHash(ciphertext)
	return plaintext, nil
}
