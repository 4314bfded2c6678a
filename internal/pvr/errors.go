package pvr

import "errors"

// ErrNotFound is returned by Catalogue.LoadByResource when resource isn't
// catalogued yet; the manager treats this as "create a new entry" rather
// than a failure.
var ErrNotFound = errors.New("pvr: resource not catalogued")

// ErrNoMatch signals that neither the dvrEntry message nor a server EPG
// lookup yields usable recording details. Nothing in this package returns
// it: the refresh task logs lookup misses and carries on without details.
var ErrNoMatch = errors.New("pvr: no recording details available")

// Kind classifies an Error, mirroring internal/htsp's sentinel-plus-kind
// pattern (itself grounded on the teacher's internal/server/errors.go).
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindValue
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValue:
		return "value"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the DVR id it concerns.
type Error struct {
	Kind  Kind
	DvrID int64
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return "pvr: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, dvrID int64, err error) *Error {
	return &Error{Kind: kind, DvrID: dvrID, Op: op, Err: err}
}
