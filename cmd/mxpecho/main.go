// Command mxpecho is a minimal demonstration of the mxp public API: a
// server that echoes every Call it receives back as a Response, and a
// client that sends a handful of Calls and prints what comes back.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/yafatek/mxp-protocol/cmd/mxpecho/internal/echoclient"
)

func main() {
	var (
		listenAddr   = flag.String("listen", "", "bind address to run as an echo server (e.g. 127.0.0.1:9000)")
		dialAddr     = flag.String("dial", "", "remote address to run as an echo client (e.g. 127.0.0.1:9000)")
		remoteStatic = flag.String("remote-static", "", "hex-encoded static public key of the server to dial (required with -dial)")
		verbose      = flag.Bool("v", false, "enable debug logging")
		count        = flag.Int("count", 5, "number of Call messages the client sends")
	)
	flag.Parse()

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	switch {
	case *listenAddr != "":
		if err := runServer(*listenAddr, logger); err != nil {
			fmt.Fprintln(os.Stderr, "mxpecho:", err)
			os.Exit(1)
		}
	case *dialAddr != "":
		remote, err := decodeRemoteStatic(*remoteStatic)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mxpecho:", err)
			os.Exit(1)
		}
		if err := echoclient.Run(*dialAddr, remote, *count, logger); err != nil {
			fmt.Fprintln(os.Stderr, "mxpecho:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: mxpecho -listen ADDR | -dial ADDR -remote-static HEX")
		os.Exit(2)
	}
}

func decodeRemoteStatic(hexKey string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return out, fmt.Errorf("invalid -remote-static: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("-remote-static must decode to 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
