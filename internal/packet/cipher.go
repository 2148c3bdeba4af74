package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/yafatek/mxp-protocol/internal/antireplay"
	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
)

const authTagSize = 16

// headerProtectionSampleLen must match the AEAD tag size: header
// protection samples the first bytes of ciphertext-plus-tag, and the
// tag is always present even for an empty payload.
const headerProtectionSampleLen = mxpcrypto.HeaderProtectionSampleLen

// Cipher seals outbound packets and opens inbound ones for one
// connection, holding the session keys of both directions, applying
// header protection and enforcing the anti-replay window on receipt. A
// connection holds one Cipher covering both directions.
type Cipher struct {
	suite mxpcrypto.AEADSuite

	sendKey [32]byte
	sendIV  [12]byte
	sendHP  *mxpcrypto.HeaderProtector

	recvKey [32]byte
	recvIV  [12]byte
	recvHP  *mxpcrypto.HeaderProtector

	nextSendPacketNumber uint64
	replay               *antireplay.Window
}

// NewCipher builds a Cipher from one side's send and receive
// directional key material derived by the handshake.
func NewCipher(send, recv mxpcrypto.DirectionalKeys) *Cipher {
	return &Cipher{
		suite:   send.Suite,
		sendKey: send.Key,
		sendIV:  send.IV,
		sendHP:  mxpcrypto.NewHeaderProtector(send.HP),
		recvKey: recv.Key,
		recvIV:  recv.IV,
		recvHP:  mxpcrypto.NewHeaderProtector(recv.HP),
		replay:  antireplay.NewWindow(),
	}
}

func nonceFromIV(iv [12]byte, packetNumber uint64) [12]byte {
	var nonce [12]byte
	copy(nonce[:], iv[:])
	var pnBytes [8]byte
	binary.LittleEndian.PutUint64(pnBytes[:], packetNumber)
	for i := 0; i < 8; i++ {
		nonce[4+i] ^= pnBytes[i]
	}
	return nonce
}

// Seal encodes and encrypts payload into a single packet, returning
// the packet number assigned and the wire bytes.
func (c *Cipher) Seal(connID uint64, flags Flags, payload []byte) (uint64, []byte, error) {
	aead, err := mxpcrypto.NewAEAD(c.suite, c.sendKey[:])
	if err != nil {
		return 0, nil, err
	}

	pn := c.nextSendPacketNumber
	c.nextSendPacketNumber++

	nonce := nonceFromIV(c.sendIV, pn)

	h := Header{
		ConnID:       connID,
		PacketNumber: pn,
		Flags:        flags,
		PayloadLen:   uint16(len(payload) + authTagSize),
		Nonce:        nonce,
	}

	hdrBuf := make([]byte, HeaderSize)
	if err := Encode(h, hdrBuf); err != nil {
		return 0, nil, err
	}

	sealed := aead.Seal(nil, nonce[:], payload, hdrBuf)

	out := make([]byte, HeaderSize+len(sealed))
	copy(out, hdrBuf)
	copy(out[HeaderSize:], sealed)

	sample := buildSample(out[HeaderSize:])
	if err := c.sendHP.Mask(sample, out[headerProtectOffset:headerProtectOffset+headerProtectLen]); err != nil {
		return 0, nil, err
	}

	return pn, out, nil
}

// Open removes header protection, decrypts, and replay-checks an
// inbound packet, returning the header and plaintext payload.
func (c *Cipher) Open(packetBytes []byte) (Header, []byte, error) {
	if len(packetBytes) < HeaderSize+authTagSize {
		return Header{}, nil, fmt.Errorf("packet: too short: %d bytes", len(packetBytes))
	}

	body := packetBytes[HeaderSize:]
	if len(body) < headerProtectionSampleLen {
		return Header{}, nil, fmt.Errorf("packet: body shorter than header protection sample: %d bytes", len(body))
	}

	unmasked := make([]byte, HeaderSize)
	copy(unmasked, packetBytes[:HeaderSize])
	sample := buildSample(body)
	if err := c.recvHP.Mask(sample, unmasked[headerProtectOffset:headerProtectOffset+headerProtectLen]); err != nil {
		return Header{}, nil, err
	}

	h, err := Decode(unmasked)
	if err != nil {
		return Header{}, nil, err
	}

	payloadLen := int(h.PayloadLen)
	if payloadLen < authTagSize {
		return Header{}, nil, fmt.Errorf("packet: payload length %d shorter than auth tag", payloadLen)
	}
	if len(body) < payloadLen {
		return Header{}, nil, fmt.Errorf("packet: payload length %d exceeds available body %d", payloadLen, len(body))
	}

	if !c.replay.Accept(h.PacketNumber) {
		return Header{}, nil, fmt.Errorf("packet: replayed or stale packet number %d", h.PacketNumber)
	}

	aead, err := mxpcrypto.NewAEAD(c.suite, c.recvKey[:])
	if err != nil {
		return Header{}, nil, err
	}
	nonce := nonceFromIV(c.recvIV, h.PacketNumber)

	plaintext, err := aead.Open(nil, nonce[:], body[:payloadLen], unmasked)
	if err != nil {
		return Header{}, nil, fmt.Errorf("packet: aead open failed: %w", err)
	}

	return h, plaintext, nil
}

func buildSample(body []byte) []byte {
	sample := make([]byte, headerProtectionSampleLen)
	n := len(body)
	if n > headerProtectionSampleLen {
		n = headerProtectionSampleLen
	}
	copy(sample, body[:n])
	return sample
}
