// Package crypto implements the Noise-IK-style three-message handshake
// that bootstraps MXP session keys, the two AEAD suites selectable
// during that handshake, the ChaCha20 header-protection
// keystream, and the opaque session-ticket resumption mechanism.
//
// The handshake is a Noise-IK-style three-message exchange over X25519,
// not classic Noise IK: message 1 is keyed from es alone (there is no
// ss term), message 2 from ee and se, and message 3 confirms the
// transcript. ChaCha20-Poly1305 (default) or AES-256-GCM (optional) is
// the record AEAD and HKDF-SHA256 the key-derivation function, per the
// Open Question resolution in DESIGN.md.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADSuite identifies the record-layer AEAD algorithm negotiated
// during the handshake.
type AEADSuite uint8

const (
	SuiteChaCha20Poly1305 AEADSuite = iota
	SuiteAES256GCM
)

func (s AEADSuite) String() string {
	switch s {
	case SuiteChaCha20Poly1305:
		return "ChaCha20Poly1305"
	case SuiteAES256GCM:
		return "AesGcm"
	default:
		return "Unknown"
	}
}

// ParseAEADSuite maps a configuration string
// (aead_suite: {ChaCha20Poly1305|AesGcm}) to an AEADSuite.
func ParseAEADSuite(s string) (AEADSuite, error) {
	switch s {
	case "", "ChaCha20Poly1305":
		return SuiteChaCha20Poly1305, nil
	case "AesGcm":
		return SuiteAES256GCM, nil
	default:
		return 0, fmt.Errorf("crypto: unknown aead suite %q", s)
	}
}

// NewAEAD constructs a cipher.AEAD for the given suite and 32-byte key.
//
// ChaCha20-Poly1305 is the default, required suite and is backed by
// golang.org/x/crypto/chacha20poly1305, the same dependency
// atframework-atsf4g-go's libatbus-go connection context and
// HadiTighsazan-reflex's tunnel session use for their sealed channel.
// AES-256-GCM is backed by the standard library (see DESIGN.md
// "Standard-library exceptions" for why no third-party AES-GCM package
// is warranted here).
func NewAEAD(suite AEADSuite, key []byte) (cipher.AEAD, error) {
	switch suite {
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: aes cipher: %w", err)
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("crypto: unsupported aead suite %d", suite)
	}
}
