package packet

import (
	"bytes"
	"testing"

	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
)

func testKeys(a, b byte) (mxpcrypto.DirectionalKeys, mxpcrypto.DirectionalKeys) {
	var k1, k2 mxpcrypto.DirectionalKeys
	k1.Suite = mxpcrypto.SuiteChaCha20Poly1305
	k2.Suite = mxpcrypto.SuiteChaCha20Poly1305
	for i := range k1.Key {
		k1.Key[i] = a
		k2.Key[i] = b
	}
	for i := range k1.IV {
		k1.IV[i] = a
		k2.IV[i] = b
	}
	for i := range k1.HP {
		k1.HP[i] = a
		k2.HP[i] = b
	}
	return k1, k2
}

func TestSealOpenRoundTrip(t *testing.T) {
	clientSend, clientRecv := testKeys(0x11, 0x22)
	serverSend, serverRecv := testKeys(0x22, 0x11)

	sendCipher := NewCipher(clientSend, clientRecv)
	recvCipher := NewCipher(serverSend, serverRecv)

	payload := []byte("hello secure world")
	pn, wire, err := sendCipher.Seal(0xAA55, 0, payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if pn != 0 {
		t.Fatalf("expected first packet number 0, got %d", pn)
	}

	h, plaintext, err := recvCipher.Open(wire)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.ConnID != 0xAA55 {
		t.Errorf("conn id mismatch: got %#x", h.ConnID)
	}
	if !bytes.Equal(plaintext, payload) {
		t.Errorf("payload mismatch: got %q, want %q", plaintext, payload)
	}
}

func TestOpenRejectsReplay(t *testing.T) {
	clientSend, clientRecv := testKeys(0x11, 0x22)
	serverSend, serverRecv := testKeys(0x22, 0x11)

	sendCipher := NewCipher(clientSend, clientRecv)
	recvCipher := NewCipher(serverSend, serverRecv)

	_, wire, err := sendCipher.Seal(1, 0, []byte("x"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, _, err := recvCipher.Open(wire); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, _, err := recvCipher.Open(wire); err == nil {
		t.Fatal("expected replayed packet to be rejected")
	}
}

func TestHeaderIsMaskedOnWire(t *testing.T) {
	clientSend, clientRecv := testKeys(0xAA, 0xBB)
	serverSend, serverRecv := testKeys(0xBB, 0xAA)

	sendCipher := NewCipher(clientSend, clientRecv)
	recvCipher := NewCipher(serverSend, serverRecv)

	payload := []byte("hp")
	_, wire, err := sendCipher.Seal(0xABCD, FlagAckEliciting, payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	clearHeader := Header{ConnID: 0xABCD, PacketNumber: 0, Flags: FlagAckEliciting, PayloadLen: uint16(len(payload) + authTagSize)}
	clearBuf := make([]byte, HeaderSize)
	if err := Encode(clearHeader, clearBuf); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if bytes.Equal(wire[:HeaderSize], clearBuf) {
		t.Fatal("expected on-wire header to differ from the unprotected header (packet number/flags should be masked)")
	}

	h, plaintext, err := recvCipher.Open(wire)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h.PacketNumber != 0 || !bytes.Equal(plaintext, payload) {
		t.Fatalf("unexpected decrypted result: %+v %q", h, plaintext)
	}
}

func TestSealEmptyPayload(t *testing.T) {
	clientSend, clientRecv := testKeys(0x01, 0x02)
	serverSend, serverRecv := testKeys(0x02, 0x01)

	sendCipher := NewCipher(clientSend, clientRecv)
	recvCipher := NewCipher(serverSend, serverRecv)

	_, wire, err := sendCipher.Seal(0xCAFE, 0, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	_, plaintext, err := recvCipher.Open(wire)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(plaintext) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(plaintext))
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{ConnID: 42, PacketNumber: 7, Flags: FlagHandshake | FlagProbe, PayloadLen: 100}
	buf := make([]byte, HeaderSize)
	if err := Encode(h, buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, h)
	}
}

func TestHeaderDecodeRejectsReservedBit(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[17] = 0x01
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected reserved byte to be rejected")
	}
}
