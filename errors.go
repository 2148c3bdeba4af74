package mxp

import "fmt"

// ErrorCode is the closed set of user-visible connection outcomes.
type ErrorCode uint8

const (
	ErrOK ErrorCode = iota
	ErrInternal
	ErrHandshakeFailed
	ErrFlowControlError
	ErrAEADFailed
	ErrIdleTimeout
	ErrApplicationReset
	ErrProtocolViolation
)

func (c ErrorCode) String() string {
	switch c {
	case ErrOK:
		return "OK"
	case ErrInternal:
		return "INTERNAL"
	case ErrHandshakeFailed:
		return "HANDSHAKE_FAILED"
	case ErrFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case ErrAEADFailed:
		return "AEAD_FAILED"
	case ErrIdleTimeout:
		return "IDLE_TIMEOUT"
	case ErrApplicationReset:
		return "APPLICATION_RESET"
	case ErrProtocolViolation:
		return "PROTOCOL_VIOLATION"
	default:
		return "UNKNOWN"
	}
}

// CloseError is a connection-fatal error carrying the closed-set code
// the peer is told about, a human-readable reason, and (internally)
// the triggering cause. Internal packages return plain errors; only
// this outward-facing package wraps them into a CloseError, mirroring
// the wire-codec/session-layer split in danmuck-edgectl/internal/protocol.
type CloseError struct {
	Code   ErrorCode
	Reason string
	Cause  error
}

func (e *CloseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mxp: connection closed (%s): %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("mxp: connection closed (%s): %s", e.Code, e.Reason)
}

func (e *CloseError) Unwrap() error { return e.Cause }

func closeErrorf(code ErrorCode, cause error, format string, args ...any) *CloseError {
	return &CloseError{Code: code, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// StreamError reports a stream-specific reset to the application via
// the stream handle's next read or write, without tearing down the
// owning connection.
type StreamError struct {
	StreamID uint64
	Reason   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("mxp: stream %d reset: %s", e.StreamID, e.Reason)
}
