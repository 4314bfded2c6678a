package htsp

import "errors"

// Sentinel errors, wrapped with context at the call site so callers can
// classify with errors.Is without parsing strings.
var (
	ErrProtocolVersion = errors.New("htsp: server htspversion too old")
	ErrAuthDenied      = errors.New("htsp: authentication denied")
	ErrCallFailed      = errors.New("htsp: call returned an error field")
	ErrTimeout         = errors.New("htsp: call timed out")
	ErrSessionLost     = errors.New("htsp: session lost")
	ErrNotActive       = errors.New("htsp: client not active")
	ErrNoMatch         = errors.New("htsp: no matching EPG event")
)

// Kind classifies an Error for callers that want to branch without string
// matching, mirroring the teacher's sentinel-plus-classifier pattern in
// internal/server/errors.go.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransport
	KindFraming
	KindProtocol
	KindTimeout
	KindValue
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindValue:
		return "value"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch on
// classification while %w-chains still work with errors.Is/errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return "htsp: " + e.Op + ": " + e.Err.Error()
	}
	return "htsp: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
