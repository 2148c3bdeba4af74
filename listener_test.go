package mxp

import (
	"context"
	"testing"
	"time"
)

func TestListenerAcceptsMultiplePeersConcurrently(t *testing.T) {
	serverIdentity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity (server): %v", err)
	}

	cfg := DefaultConfig()
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.IdleTimeout = 5 * time.Second

	l, err := Listen("127.0.0.1:0", serverIdentity, cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	const peers = 4
	clientDone := make(chan *Connection, peers)
	for i := 0; i < peers; i++ {
		go func() {
			clientIdentity, err := GenerateIdentity()
			if err != nil {
				t.Errorf("GenerateIdentity (client): %v", err)
				return
			}
			c, err := Dial(l.Addr().String(), clientIdentity, serverIdentity.Public, cfg)
			if err != nil {
				t.Errorf("Dial: %v", err)
				return
			}
			clientDone <- c
		}()
	}

	accepted := make([]*Connection, 0, peers)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for i := 0; i < peers; i++ {
		c, err := l.Accept(ctx)
		if err != nil {
			t.Fatalf("Accept %d: %v", i, err)
		}
		accepted = append(accepted, c)
	}

	if len(accepted) != peers {
		t.Fatalf("accepted %d connections, want %d", len(accepted), peers)
	}

	l.mu.Lock()
	tracked := len(l.byConnID)
	l.mu.Unlock()
	if tracked != peers {
		t.Fatalf("listener tracks %d peers, want %d", tracked, peers)
	}

	for i := 0; i < peers; i++ {
		c := <-clientDone
		c.Close()
	}
	for _, c := range accepted {
		c.Close()
	}
}

func TestListenerCloseStopsAcceptingAndClosesConnections(t *testing.T) {
	client, server, l := dialAndAccept(t)
	t.Cleanup(func() { client.Close() })

	if err := l.Close(); err != nil {
		t.Fatalf("Listener Close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		server.mu.Lock()
		state := server.state
		server.mu.Unlock()
		if state == connStateClosed {
			goto closed
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server connection was not closed by Listener.Close")
closed:

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := l.Accept(ctx); err == nil {
		t.Fatal("expected Accept on a closed listener to fail")
	}
}

func TestListenerAddrReflectsBoundPort(t *testing.T) {
	identity, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	l, err := Listen("127.0.0.1:0", identity, DefaultConfig())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	if l.Addr().String() == "127.0.0.1:0" {
		t.Fatal("expected Listen to resolve an ephemeral port, not keep :0")
	}
}
