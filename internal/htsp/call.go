package htsp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
)

// Call issues method with params (may be nil), lazily establishing the
// session if necessary, and blocks for the response (bounded by the
// configured socket timeout). Once authenticate has succeeded, every
// subsequent call also carries "username" and the session's "digest" per
// spec.md §4.3's "thereafter" requirement — not just the authenticate
// request itself. A response carrying an "error" field surfaces as
// ErrCallFailed with that text. This is the single generic entry point;
// GetChannel/GetEvent/etc. are thin typed wrappers over it.
func (c *Client) Call(ctx context.Context, method string, params *htsmsg.Map) (*htsmsg.Map, error) {
	if err := c.ensureSession(ctx); err != nil {
		metrics.RecordCall(method, "error")
		return nil, err
	}

	msg := htsmsg.NewMap()
	if params != nil {
		for _, k := range params.Keys() {
			v, _ := params.Get(k)
			msg.Set(k, v)
		}
	}
	msg.SetStr("method", method)

	c.mu.Lock()
	username := c.username
	digest := c.digest
	c.mu.Unlock()
	if username != "" {
		msg.SetStr("username", username)
	}
	if digest != nil {
		msg.SetBin("digest", digest)
	}

	resp, err := c.callOn(ctx, msg)
	if err != nil {
		var htspErr *Error
		if errors.As(err, &htspErr) && htspErr.Kind == KindTimeout {
			metrics.RecordCall(method, "timeout")
		} else {
			metrics.RecordCall(method, "error")
		}
		return nil, err
	}
	if errStr, has := resp.GetStr("error"); has {
		metrics.RecordCall(method, "error")
		return nil, newError(KindProtocol, method, fmt.Errorf("%w: %s", ErrCallFailed, errStr))
	}
	metrics.RecordCall(method, "ok")
	return resp, nil
}

// callOn sends msg (already carrying "method" and any request-specific
// fields) over the current connection, allocating a seq and registering a
// waiter, then blocks for the matching response. Used directly by session
// establishment (hello/authenticate) before the session is considered live.
func (c *Client) callOn(ctx context.Context, msg *htsmsg.Map) (*htsmsg.Map, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, newError(KindTransport, "call", ErrSessionLost)
	}

	seq := c.nextSeq()
	msg.SetInt64("seq", seq)

	w := &waiter{done: make(chan struct{})}
	c.waitersMu.Lock()
	c.waiters[seq] = w
	metrics.SetWaiters(len(c.waiters))
	c.waitersMu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, c.socketTimeout)
	defer cancel()
	if err := conn.Send(sendCtx, msg); err != nil {
		c.removeWaiter(seq)
		return nil, newError(KindTransport, "send", err)
	}

	timer := time.NewTimer(c.socketTimeout)
	defer timer.Stop()

	select {
	case <-w.done:
		if w.err != nil {
			return nil, w.err
		}
		return w.result, nil
	case <-timer.C:
		c.removeWaiter(seq)
		return nil, newError(KindTimeout, "call", ErrTimeout)
	case <-ctx.Done():
		c.removeWaiter(seq)
		return nil, newError(KindTimeout, "call", ctx.Err())
	}
}

// removeWaiter deletes seq's entry if still present; a late-arriving
// response to an abandoned (timed-out) seq finds nothing and is dropped by
// the reader loop. This mutex-guarded delete-on-every-completion-path is
// what stands in for the source's weak-valued waiter table (see DESIGN.md).
func (c *Client) removeWaiter(seq int64) {
	c.waitersMu.Lock()
	delete(c.waiters, seq)
	metrics.SetWaiters(len(c.waiters))
	c.waitersMu.Unlock()
}
