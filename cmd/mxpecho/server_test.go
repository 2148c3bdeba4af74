package main

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/yafatek/mxp-protocol/cmd/mxpecho/internal/echoclient"
)

func TestEchoServerRoundTripsCallsFromClient(t *testing.T) {
	logger := zerolog.Nop()

	l, identity, err := newEchoListener("127.0.0.1:0", logger)
	if err != nil {
		t.Fatalf("newEchoListener: %v", err)
	}
	defer l.Close()

	go serve(l, logger)

	if err := echoclient.Run(l.Addr().String(), identity.Public, 3, logger); err != nil {
		t.Fatalf("echoclient.Run: %v", err)
	}
}
