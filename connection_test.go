package mxp

import (
	"context"
	"testing"
	"time"
)

// dialAndAccept spins up a loopback Listener, dials it, and returns both
// ends of one established connection.
func dialAndAccept(t *testing.T) (client, server *Connection, listener *Listener) {
	t.Helper()

	serverIdentity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity (server): %v", err)
	}
	clientIdentity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity (client): %v", err)
	}

	cfg := DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.IdleTimeout = 2 * time.Second

	l, err := Listen("127.0.0.1:0", serverIdentity, cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	type dialResult struct {
		conn *Connection
		err  error
	}
	dialDone := make(chan dialResult, 1)
	go func() {
		c, err := Dial(l.Addr().String(), clientIdentity, serverIdentity.Public, cfg)
		dialDone <- dialResult{c, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	res := <-dialDone
	if res.err != nil {
		t.Fatalf("Dial: %v", res.err)
	}

	return res.conn, srv, l
}

func TestDialListenHandshakeEstablishes(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	client.mu.Lock()
	clientState := client.state
	client.mu.Unlock()
	if clientState != connStateEstablished {
		t.Fatalf("client state = %v, want established", clientState)
	}

	server.mu.Lock()
	serverState := server.state
	server.mu.Unlock()
	if serverState != connStateEstablished {
		t.Fatalf("server state = %v, want established", serverState)
	}
}

func TestDialTimesOutAgainstUnresponsivePeer(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	var bogusRemote [32]byte

	cfg := DefaultConfig()
	cfg.HandshakeTimeout = 100 * time.Millisecond

	// Nothing is listening on this loopback port, so every handshake
	// packet is silently dropped by the OS and the handshake can never
	// complete.
	_, err = Dial("127.0.0.1:1", identity, bogusRemote, cfg)
	if err == nil {
		t.Fatal("expected Dial against an unresponsive peer to fail")
	}
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	defer server.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestServerDetectsPeerGoneViaIdleTimeout(t *testing.T) {
	serverIdentity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity (server): %v", err)
	}
	clientIdentity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity (client): %v", err)
	}

	cfg := DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.IdleTimeout = 80 * time.Millisecond

	l, err := Listen("127.0.0.1:0", serverIdentity, cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	dialDone := make(chan *Connection, 1)
	go func() {
		c, err := Dial(l.Addr().String(), clientIdentity, serverIdentity.Public, cfg)
		if err != nil {
			t.Errorf("Dial: %v", err)
			return
		}
		dialDone <- c
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server, err := l.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	client := <-dialDone
	client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		server.mu.Lock()
		state := server.state
		server.mu.Unlock()
		if state == connStateClosed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never observed idle timeout after peer close")
}
