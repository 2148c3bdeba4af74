package crypto

import (
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// HeaderProtectionSampleLen is how many bytes of ciphertext are sampled
// to seed the header-protection keystream.
const HeaderProtectionSampleLen = 16

// HeaderProtector masks the packet-number and flag bits of a packet
// header with a ChaCha20 keystream sampled from the packet's own
// ciphertext, the same construction QUIC uses to keep packet numbers
// from appearing in the clear on the wire.
type HeaderProtector struct {
	key [32]byte
}

// NewHeaderProtector builds a HeaderProtector bound to one direction's
// header-protection key, as produced by Handshake.DeriveSessionKeys.
func NewHeaderProtector(key [32]byte) *HeaderProtector {
	return &HeaderProtector{key: key}
}

// Mask derives a keystream from sample (the first HeaderProtectionSampleLen
// bytes of the packet's ciphertext, which must already exist when this is
// called) and XORs it into hdr in place. The same call both applies and
// removes protection, since XOR is its own inverse.
func (p *HeaderProtector) Mask(sample []byte, hdr []byte) error {
	if len(sample) < HeaderProtectionSampleLen {
		return fmt.Errorf("crypto: header protection sample too short: %d bytes", len(sample))
	}
	var nonce [12]byte
	copy(nonce[:4], sample[:4])
	c, err := chacha20.NewUnauthenticatedCipher(p.key[:], nonce[:])
	if err != nil {
		return fmt.Errorf("crypto: header protection cipher: %w", err)
	}
	c.SetCounter(bytesToUint32(sample[4:8]))

	keystream := make([]byte, len(hdr))
	c.XORKeyStream(keystream, keystream)
	for i := range hdr {
		hdr[i] ^= keystream[i]
	}
	return nil
}

func bytesToUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
