// Package mxp implements the MXP transport: a Noise-IK-secured,
// congestion-controlled, multiplexed datagram protocol for
// high-frequency agent-to-agent communication over UDP. It wires
// together the wire codec, handshake, packet engine, reliability
// engine, and stream/datagram multiplexer living under internal/ into
// a single Dial/Listen surface, in the same spirit as LQUIC's
// server/client split but unified into one package since initiator and
// responder are symmetric roles here.
package mxp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
)

// Version is the wire protocol version this package implements.
const Version = 1

// DefaultPort is the port assumed by an mxp:// URL that omits one.
const DefaultPort = 9000

// Identity is a transport endpoint's long-lived X25519 static key
// pair, used to authenticate it during the Noise-IK handshake. The
// responder's Identity.Public must be known to the initiator a priori
// (out-of-band or via a registry), per the handshake's IK pattern.
type Identity struct {
	static mxpcrypto.KeyPair
	Public [32]byte
}

// GenerateIdentity creates a fresh static identity. Callers should
// create one per long-lived endpoint and reuse it across connections
// and handshakes, not mint one per dial.
func GenerateIdentity() (Identity, error) {
	kp, pub, err := mxpcrypto.GenerateStaticKeyPair()
	if err != nil {
		return Identity{}, fmt.Errorf("mxp: generate identity: %w", err)
	}
	return Identity{static: kp, Public: pub}, nil
}

// Addr is a parsed "mxp://host:port[/agent-id]" endpoint reference.
type Addr struct {
	Host    string
	Port    int
	AgentID string
}

func (a Addr) String() string {
	s := fmt.Sprintf("mxp://%s:%d", a.Host, a.Port)
	if a.AgentID != "" {
		s += "/" + a.AgentID
	}
	return s
}

// HostPort returns the host:port form suitable for net.ResolveUDPAddr.
func (a Addr) HostPort() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ParseAddr parses an mxp:// URL into its host, port, and optional
// agent id, defaulting the port to DefaultPort when omitted.
func ParseAddr(raw string) (Addr, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Addr{}, fmt.Errorf("mxp: parse address %q: %w", raw, err)
	}
	if u.Scheme != "mxp" {
		return Addr{}, fmt.Errorf("mxp: unsupported scheme %q (want \"mxp\")", u.Scheme)
	}
	if u.Host == "" {
		return Addr{}, fmt.Errorf("mxp: address %q has no host", raw)
	}

	host := u.Hostname()
	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Addr{}, fmt.Errorf("mxp: invalid port in %q: %w", raw, err)
		}
	}

	agentID := strings.TrimPrefix(u.Path, "/")
	return Addr{Host: host, Port: port, AgentID: agentID}, nil
}
