package mxp

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/yafatek/mxp-protocol/internal/congestion"
	mxpcrypto "github.com/yafatek/mxp-protocol/internal/crypto"
)

// Config collects every operational knob the transport recognizes.
// It is constructed in-process by the embedding
// application; loading it from a file format is an operator-CLI
// concern out of scope here.
type Config struct {
	MTU              int
	InitialCwndBytes int

	BufferPoolSlots int
	BufferSlotBytes int

	MaxStreams int

	IdleTimeout      time.Duration
	HandshakeTimeout time.Duration

	KeyRotationPackets uint64
	KeyRotationSeconds time.Duration

	AEADSuite   mxpcrypto.AEADSuite
	Congestion  congestion.Algorithm

	PcapInPath  string
	PcapOutPath string

	// Logger receives structured diagnostics. The zero value is
	// zerolog.Nop(): library code never forces console output on an
	// importer.
	Logger zerolog.Logger
}

// DefaultConfig returns MXP's documented defaults.
func DefaultConfig() Config {
	return Config{
		MTU:                1350,
		InitialCwndBytes:    10 * 1350,
		BufferPoolSlots:     1024,
		BufferSlotBytes:     2048,
		MaxStreams:          1000,
		IdleTimeout:         30 * time.Second,
		HandshakeTimeout:    5 * time.Second,
		KeyRotationPackets:  1 << 32,
		KeyRotationSeconds:  60 * time.Second,
		AEADSuite:           mxpcrypto.SuiteChaCha20Poly1305,
		Congestion:          congestion.AlgorithmBBR,
		Logger:              zerolog.Nop(),
	}
}

// Validate rejects a Config that would produce undefined behavior
// downstream rather than letting internal packages fail in confusing
// ways later.
func (c Config) Validate() error {
	if c.MTU < 576 {
		return fmt.Errorf("mxp: mtu %d below minimum 576", c.MTU)
	}
	if c.InitialCwndBytes <= 0 {
		return fmt.Errorf("mxp: initial_cwnd_bytes must be positive")
	}
	if c.BufferPoolSlots <= 0 || c.BufferSlotBytes <= 0 {
		return fmt.Errorf("mxp: buffer pool dimensions must be positive")
	}
	if c.MaxStreams <= 0 {
		return fmt.Errorf("mxp: max_streams must be positive")
	}
	if c.IdleTimeout <= 0 || c.HandshakeTimeout <= 0 {
		return fmt.Errorf("mxp: timeouts must be positive")
	}
	return nil
}

const (
	envCongestion  = "MXP_CONGESTION"
	envAEADSuite   = "MXP_AEAD_SUITE"
	envMTU         = "MXP_MTU"
	envIdleTimeout = "MXP_IDLE_TIMEOUT_MS"
)

// ApplyEnvOverrides lets an operator tune the handful of knobs worth
// changing without a redeploy, the same env-var override shape
// danmuck-edgectl's internal/logging/config.go uses for its own
// runtime-tunable fields.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(envCongestion); v != "" {
		c.Congestion = congestion.ParseAlgorithm(v)
	}
	if v := os.Getenv(envAEADSuite); v != "" {
		if suite, err := mxpcrypto.ParseAEADSuite(v); err == nil {
			c.AEADSuite = suite
		}
	}
	if v := os.Getenv(envMTU); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MTU = n
		}
	}
	if v := os.Getenv(envIdleTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.IdleTimeout = time.Duration(n) * time.Millisecond
		}
	}
}
