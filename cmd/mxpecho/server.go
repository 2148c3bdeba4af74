package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	mxp "github.com/yafatek/mxp-protocol"
	"github.com/yafatek/mxp-protocol/internal/wire"
)

// runServer binds laddr, prints the identity a client needs to dial it
// with, and echoes every Call it receives back as a Response on the
// same stream.
func runServer(laddr string, logger zerolog.Logger) error {
	l, identity, err := newEchoListener(laddr, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	fmt.Printf("mxpecho server listening on %s\n", l.Addr())
	fmt.Printf("static public key (pass as -remote-static to a client): %s\n", hex.EncodeToString(identity.Public[:]))

	return serve(l, logger)
}

func newEchoListener(laddr string, logger zerolog.Logger) (*mxp.Listener, mxp.Identity, error) {
	identity, err := mxp.GenerateIdentity()
	if err != nil {
		return nil, mxp.Identity{}, fmt.Errorf("generate server identity: %w", err)
	}

	cfg := mxp.DefaultConfig()
	cfg.Logger = logger

	l, err := mxp.Listen(laddr, identity, cfg)
	if err != nil {
		return nil, mxp.Identity{}, fmt.Errorf("listen: %w", err)
	}
	return l, identity, nil
}

func serve(l *mxp.Listener, logger zerolog.Logger) error {
	for {
		conn, err := l.Accept(context.Background())
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go serveConnection(conn, logger)
	}
}

func serveConnection(conn *mxp.Connection, logger zerolog.Logger) {
	defer conn.Close()
	for {
		s, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go echoStream(s, logger)
	}
}

func echoStream(s *mxp.Stream, logger zerolog.Logger) {
	req, err := readMessage(s)
	if err != nil {
		logger.Debug().Err(err).Uint64("stream_id", s.ID()).Msg("mxpecho: read request")
		return
	}

	resp := wire.NewMessage(wire.Response, req.Payload)
	resp.Header.MessageID = req.Header.MessageID
	resp.Header.TraceID = req.Header.TraceID

	if _, err := s.Write(wire.Encode(resp)); err != nil {
		logger.Debug().Err(err).Uint64("stream_id", s.ID()).Msg("mxpecho: write response")
		return
	}
	s.CloseWrite()
}

// readMessage reads a stream to completion and decodes one wire.Message
// from it, matching how an application built on Stream's raw bytes is
// expected to frame its own messages (mxpecho's framing convention is
// one message per stream).
func readMessage(s *mxp.Stream) (*wire.Message, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := s.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return wire.Decode(buf)
}
