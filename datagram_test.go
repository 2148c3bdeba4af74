package mxp

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDatagramRoundTrip(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	payload := []byte("unreliable hello")
	if err := client.SendDatagram(payload); err != nil {
		t.Fatalf("SendDatagram: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := server.ReceiveDatagram(ctx)
	if err != nil {
		t.Fatalf("ReceiveDatagram: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReceiveDatagram = %q, want %q", got, payload)
	}
}

func TestSendDatagramRejectsOversizedPayload(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	huge := make([]byte, client.cfg.MTU*2)
	if err := client.SendDatagram(huge); err != ErrDatagramTooLarge {
		t.Fatalf("SendDatagram(huge) = %v, want ErrDatagramTooLarge", err)
	}
}

func TestReceiveDatagramRespectsContextCancellation(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := server.ReceiveDatagram(ctx)
	if err == nil {
		t.Fatal("expected ReceiveDatagram to report the context's deadline")
	}
}

func TestDatagramInboundQueueDropsOldestOnOverflow(t *testing.T) {
	client, server, _ := dialAndAccept(t)
	t.Cleanup(func() { client.Close(); server.Close() })

	server.mu.Lock()
	for i := 0; i < maxDatagramInboundQueue+10; i++ {
		server.dropOldestDatagramLocked()
		server.inDatagrams = append(server.inDatagrams, []byte(strings.Repeat("x", 1)))
	}
	count := len(server.inDatagrams)
	dropped := atomic.LoadInt64(&server.m.DatagramDropped)
	server.mu.Unlock()

	if count != maxDatagramInboundQueue {
		t.Fatalf("inbound queue length = %d, want exactly %d", count, maxDatagramInboundQueue)
	}
	if dropped != 10 {
		t.Fatalf("dropped count = %d, want 10", dropped)
	}
}
