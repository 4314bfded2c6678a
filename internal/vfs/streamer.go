package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/logging"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
	"github.com/htspvr/htsp-pvr-sync/internal/pvr"
)

// processStart is the process's own start time, used as the fallback mtime
// for the directory root and for file streams that never become eligible
// for a server-side handle (spec.md §4.5).
var processStart = time.Now().Unix()

// Streamer is a single open vfs stream: either the directory root or one
// DVR recording's file handle. Not safe for concurrent use beyond the
// mutex-guarded accessors below — mirrors the original's one-handle-per-
// object design (x_tvheadend.Object).
type Streamer struct {
	client FileClient
	status StatusLookup
	name   func(ctx context.Context) (string, error)
	logger *slog.Logger

	mu        sync.Mutex
	kind      vfsType
	dvrID     int64
	resource  string
	hasHandle bool
	eligible  bool // set once supportsHandle has been checked
	checked   bool
	handleID  int64
	position  int64
}

// Option configures a Streamer at construction time.
type Option func(*Streamer)

// WithServerName supplies the directory root's reported name (the server's
// display name). Optional; defaults to "" when omitted.
func WithServerName(fn func(ctx context.Context) (string, error)) Option {
	return func(s *Streamer) { s.name = fn }
}

// WithLogger overrides the package-default logger accessor.
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStreamer constructs a closed Streamer. Call Open before any other
// operation.
func NewStreamer(client FileClient, status StatusLookup, opts ...Option) *Streamer {
	s := &Streamer{
		client: client,
		status: status,
		logger: logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open records the stream's target and resets position; it does not open a
// server-side handle (spec.md §4.5: "on open, only record the DVR id and
// reset position").
func (s *Streamer) Open(ctx context.Context, rawURL string) error {
	p, err := parseURL(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = p.kind
	s.dvrID = p.dvrID
	s.position = 0
	s.hasHandle = false
	s.checked = false
	s.eligible = false
	if p.kind == typeFile {
		s.resource = pvr.ResourceURL(p.dvrID)
	} else {
		s.resource = ""
	}
	return nil
}

// Close releases the server-side handle, if one was opened. Safe to call on
// a stream that never opened a handle.
func (s *Streamer) Close(ctx context.Context) error {
	s.mu.Lock()
	hasHandle := s.hasHandle
	handleID := s.handleID
	s.hasHandle = false
	s.mu.Unlock()

	if !hasHandle {
		return nil
	}
	return s.client.FileClose(ctx, handleID)
}

// ensureHandleOpened lazily opens the server-side fileOpen handle the first
// time any size/read/seek/time operation is requested, gated on the
// recording's status being Finished or Recording (Invariant per spec.md
// §4.5). The eligibility result is cached for the life of this Open.
func (s *Streamer) ensureHandleOpened(ctx context.Context) error {
	s.mu.Lock()
	kind, resource, checked, eligible, hasHandle := s.kind, s.resource, s.checked, s.eligible, s.hasHandle
	dvrID := s.dvrID
	s.mu.Unlock()

	if kind != typeFile {
		return newError(KindValue, "ensure_handle_opened", "", ErrUnsupportedScheme)
	}
	if hasHandle {
		return nil
	}
	if checked && !eligible {
		return newError(KindNotEligible, "ensure_handle_opened", resource, ErrNotEligible)
	}

	if !checked {
		status, err := s.status.RecordingStatus(ctx, resource)
		eligible = err == nil && (status == pvr.StatusFinished || status == pvr.StatusRecording)
		s.mu.Lock()
		s.checked, s.eligible = true, eligible
		s.mu.Unlock()
		if !eligible {
			if err != nil && !errors.Is(err, pvr.ErrNotFound) {
				s.logger.Debug("vfs_status_lookup_failed", "resource", resource, "error", err)
			}
			return newError(KindNotEligible, "ensure_handle_opened", resource, ErrNotEligible)
		}
	}

	resp, err := s.client.FileOpen(ctx, fmt.Sprintf("/dvrfile/%d", dvrID))
	if err != nil {
		return newError(KindTransport, "file_open", resource, err)
	}
	handleID, _ := resp.GetInt64("id")

	s.mu.Lock()
	s.handleID = handleID
	s.hasHandle = true
	s.mu.Unlock()
	return nil
}

// Read requests up to n bytes from the current position, advancing it by
// the length of the data actually returned.
func (s *Streamer) Read(ctx context.Context, n int64) ([]byte, error) {
	if err := s.ensureHandleOpened(ctx); err != nil {
		var vfsErr *Error
		if errors.As(err, &vfsErr) && vfsErr.Kind == KindNotEligible {
			return nil, io.EOF
		}
		return nil, err
	}
	s.mu.Lock()
	handleID, resource := s.handleID, s.resource
	s.mu.Unlock()

	resp, err := s.client.FileRead(ctx, handleID, n)
	if err != nil {
		return nil, newError(KindTransport, "file_read", resource, err)
	}
	data, _ := resp.GetBin("data")

	s.mu.Lock()
	s.position += int64(len(data))
	s.mu.Unlock()
	metrics.AddStreamerBytesRead(len(data))
	if len(data) == 0 {
		return data, io.EOF
	}
	return data, nil
}

// Seek repositions the handle to offset (always SEEK_SET per spec.md
// §4.5), replacing the client-side position with the server-reported
// offset.
func (s *Streamer) Seek(ctx context.Context, offset int64) (int64, error) {
	if err := s.ensureHandleOpened(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	handleID, resource := s.handleID, s.resource
	s.mu.Unlock()

	resp, err := s.client.FileSeek(ctx, handleID, offset)
	if err != nil {
		return 0, newError(KindTransport, "file_seek", resource, err)
	}
	newOffset, _ := resp.GetInt64("offset")

	s.mu.Lock()
	s.position = newOffset
	s.mu.Unlock()
	metrics.IncStreamerSeek()
	return newOffset, nil
}

// Tell returns the current client-side position without a round trip.
func (s *Streamer) Tell() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// stat fetches size/mtime for the open handle, or the fallback sentinels
// (0, process start) when the stream never became eligible.
func (s *Streamer) stat(ctx context.Context) (size int64, mtime int64) {
	if err := s.ensureHandleOpened(ctx); err != nil {
		return 0, processStart
	}
	s.mu.Lock()
	handleID := s.handleID
	s.mu.Unlock()

	resp, err := s.client.FileStat(ctx, handleID)
	if err != nil {
		s.logger.Debug("vfs_file_stat_failed", "error", err)
		return 0, processStart
	}
	size, _ = resp.GetInt64("size")
	mtime, _ = resp.GetInt64("mtime")
	return size, mtime
}

// Size returns the recording's byte size, or 0 when not eligible or when
// this is the directory root.
func (s *Streamer) Size(ctx context.Context) int64 {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != typeFile {
		return 0
	}
	size, _ := s.stat(ctx)
	return size
}

// TimeUpdated returns the recording's mtime, or the process start time for
// the directory root and for ineligible file streams.
func (s *Streamer) TimeUpdated(ctx context.Context) int64 {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != typeFile {
		return processStart
	}
	_, mtime := s.stat(ctx)
	return mtime
}

// IsEOF is true when the handle never opened (not eligible, or directory
// root) or the current position has reached the reported size.
func (s *Streamer) IsEOF(ctx context.Context) bool {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != typeFile {
		return true
	}
	size := s.Size(ctx)

	s.mu.Lock()
	hasHandle, position := s.hasHandle, s.position
	s.mu.Unlock()
	if !hasHandle {
		return true
	}
	return position >= size
}

// IsValid reports whether this stream resolved to an eligible, openable
// recording (directory roots are always valid; file streams require a
// Finished or Recording status).
func (s *Streamer) IsValid(ctx context.Context) bool {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != typeFile {
		return true
	}
	return s.ensureHandleOpened(ctx) == nil
}

// Name returns the directory root's display name (the server name), or ""
// for a file stream.
func (s *Streamer) Name(ctx context.Context) string {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != typeFile && s.name != nil {
		n, err := s.name(ctx)
		if err == nil {
			return n
		}
	}
	return ""
}
