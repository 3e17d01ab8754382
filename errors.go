package bassaes67

import "errors"

// ErrorKind identifies one of the abstract error categories from the
// engine's error handling design. Each maps to a stable integer at the
// ABI boundary via ErrorKind.ABICode.
type ErrorKind int

const (
	ErrKindNone ErrorKind = iota
	ErrKindBadURL
	ErrKindSocketBindFailed
	ErrKindJoinGroupFailed
	ErrKindClockUnavailable
	ErrKindCodecInitFailed
	ErrKindUnsupportedPayloadType
	ErrKindPacketMalformed
	ErrKindDecodeError
	ErrKindEncodeError
	ErrKindBufferFull
	ErrKindShortRead
	ErrKindInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindBadURL:
		return "BadUrl"
	case ErrKindSocketBindFailed:
		return "SocketBindFailed"
	case ErrKindJoinGroupFailed:
		return "JoinGroupFailed"
	case ErrKindClockUnavailable:
		return "ClockUnavailable"
	case ErrKindCodecInitFailed:
		return "CodecInitFailed"
	case ErrKindUnsupportedPayloadType:
		return "UnsupportedPayloadType"
	case ErrKindPacketMalformed:
		return "PacketMalformed"
	case ErrKindDecodeError:
		return "DecodeError"
	case ErrKindEncodeError:
		return "EncodeError"
	case ErrKindBufferFull:
		return "BufferFull"
	case ErrKindShortRead:
		return "ShortRead"
	case ErrKindInterrupted:
		return "Interrupted"
	default:
		return "None"
	}
}

// ABICode returns the stable integer the host-facing ABI uses for this
// error kind. Out-of-band ABI calls (create/start/stop) return this code;
// audio-path errors never cross the ABI and are counted in StreamStats
// instead.
func (k ErrorKind) ABICode() int32 { return int32(k) }

// Error is the engine's internal error type. It carries a Kind for ABI
// translation and wraps an underlying cause for diagnostics.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error for op with the given kind, optionally
// wrapping cause.
func NewError(op string, kind ErrorKind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// KindOf extracts the ErrorKind from err, or ErrKindNone if err is nil or
// not one of ours.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindNone
}
