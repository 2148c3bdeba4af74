// Package echoclient holds the dialing side of mxpecho, kept under
// internal/ the way LQUIC tucks its own internal/client away from the
// package(s) a consumer imports directly.
package echoclient

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	mxp "github.com/yafatek/mxp-protocol"
	"github.com/yafatek/mxp-protocol/internal/wire"
)

// Run dials raddr, sends count Call messages (one per stream) and
// prints each Response as it arrives.
func Run(raddr string, remoteStatic [32]byte, count int, logger zerolog.Logger) error {
	identity, err := mxp.GenerateIdentity()
	if err != nil {
		return fmt.Errorf("generate client identity: %w", err)
	}

	cfg := mxp.DefaultConfig()
	cfg.Logger = logger

	conn, err := mxp.Dial(raddr, identity, remoteStatic, cfg)
	if err != nil {
		return fmt.Errorf("dial %s: %w", raddr, err)
	}
	defer conn.Close()

	for i := 0; i < count; i++ {
		if err := callOnce(conn, uint64(i+1)); err != nil {
			return fmt.Errorf("call %d: %w", i+1, err)
		}
	}
	return nil
}

func callOnce(conn *mxp.Connection, messageID uint64) error {
	s, err := conn.OpenStream()
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	payload := []byte(fmt.Sprintf("hello #%d at %s", messageID, time.Now().Format(time.RFC3339Nano)))
	req := wire.NewMessage(wire.Call, payload)
	req.Header.MessageID = messageID

	if _, err := s.Write(wire.Encode(req)); err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		return fmt.Errorf("close write: %w", err)
	}

	resp, err := readMessage(s)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	fmt.Printf("stream %d: %s -> %q\n", s.ID(), resp.Type(), resp.Payload)
	return nil
}

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
