package wire

import "fmt"

// DecodeError distinguishes the ways a byte sequence can fail to decode
// as a valid MXP message. Every DecodeError is non-fatal to the
// connection; the caller drops the offending message and
// continues.
type DecodeError struct {
	Kind DecodeErrorKind
	msg  string
}

// DecodeErrorKind enumerates the closed set of decode failure reasons.
type DecodeErrorKind int

const (
	BadMagic DecodeErrorKind = iota
	UnknownType
	ReservedNonZero
	LengthExceedsMax
	LengthExceedsBuffer
	BadChecksum
	InvalidFlags
)

func (k DecodeErrorKind) String() string {
	switch k {
	case BadMagic:
		return "BadMagic"
	case UnknownType:
		return "UnknownType"
	case ReservedNonZero:
		return "ReservedNonZero"
	case LengthExceedsMax:
		return "LengthExceedsMax"
	case LengthExceedsBuffer:
		return "LengthExceedsBuffer"
	case BadChecksum:
		return "BadChecksum"
	case InvalidFlags:
		return "InvalidFlags"
	default:
		return "Unknown"
	}
}

func (e *DecodeError) Error() string {
	if e.msg == "" {
		return "wire: " + e.Kind.String()
	}
	return fmt.Sprintf("wire: %s: %s", e.Kind, e.msg)
}

func newDecodeError(kind DecodeErrorKind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Is enables errors.Is(err, &wire.DecodeError{Kind: wire.BadChecksum})
// style comparisons against a target constructed with the same Kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
