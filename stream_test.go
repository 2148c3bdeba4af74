package mxp

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

func TestStreamWriteReadDeliversBytes(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	cs, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	payload := []byte("hello from the client")
	if n, err := cs.Write(payload); err != nil || n != len(payload) {
		t.Fatalf("Write = %d, %v", n, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ss, err := server.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream: %v", err)
	}

	buf := make([]byte, len(payload))
	n, err := ss.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Fatalf("Read = %q, want %q", buf[:n], payload)
	}
}

func TestStreamCloseWriteSignalsEOF(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	cs, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := cs.Write([]byte("abc")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cs.CloseWrite(); err != nil {
		t.Fatalf("CloseWrite: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ss, err := server.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream: %v", err)
	}

	var got bytes.Buffer
	buf := make([]byte, 4)
	for {
		n, err := ss.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if got.String() != "abc" {
		t.Fatalf("assembled read = %q, want %q", got.String(), "abc")
	}
}

func TestStreamResetSurfacesToPeer(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	cs, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if _, err := cs.Write([]byte("will be reset")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ss, err := server.AcceptStream(ctx)
	if err != nil {
		t.Fatalf("AcceptStream: %v", err)
	}

	if err := cs.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	readDone := make(chan error, 1)
	buf := make([]byte, 16)
	go func() {
		_, err := ss.Read(buf)
		readDone <- err
	}()

	select {
	case err := <-readDone:
		if _, ok := err.(*StreamError); !ok {
			t.Fatalf("Read error = %v, want *StreamError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never observed the stream reset")
	}
}

func TestOpenStreamBeforeHandshakeFails(t *testing.T) {
	cfg := DefaultConfig()
	c := newConnection(cfg, dialSocket{}, nil, true, nil)
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != connStateHandshaking {
		t.Fatalf("fresh connection state = %v, want handshaking", state)
	}

	if _, err := c.OpenStream(); err == nil {
		t.Fatal("expected OpenStream before handshake completion to fail")
	}
}
