package htsp

import (
	"context"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/events"
	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
	"github.com/htspvr/htsp-pvr-sync/internal/transport"
)

// readLoopTimeout bounds each individual Receive call. It is unrelated to
// the per-call socketTimeout: it is simply long enough that a live,
// otherwise-idle session never spuriously trips it, while still giving the
// reader a chance to notice a wedged socket eventually.
const readLoopTimeout = 24 * time.Hour

// readLoop is the single reader task driving one socket (spec.md §4.3). It
// never blocks on subscriber work: every server event is dispatched via
// Bus.Publish, which itself spawns one goroutine per handler.
func (c *Client) readLoop(conn *transport.Conn) {
	defer c.readerWG.Done()
	for {
		msg, err := conn.Receive(context.Background(), readLoopTimeout)
		if err != nil {
			c.onReaderError(conn, err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg *htsmsg.Map) {
	if msg.Has("seq") {
		seq, _ := msg.GetInt64("seq")
		c.waitersMu.Lock()
		w, ok := c.waiters[seq]
		if ok {
			delete(c.waiters, seq)
		}
		metrics.SetWaiters(len(c.waiters))
		c.waitersMu.Unlock()

		if !ok {
			metrics.IncEventDropped()
			c.logger.Warn("htsp_unknown_seq", "seq", seq)
			return
		}
		w.result = msg
		close(w.done)
		return
	}

	method, _ := msg.GetStr("method")
	if method == "" {
		return
	}
	metrics.IncEventDispatched(method)
	c.onChannelCacheEvent(method, msg)
	c.bus.Publish(events.Event{Method: method, Body: msg})
}

// onReaderError tears the session down on any decoder/transport error or
// EOF (spec.md §4.3's reader task behavior); it never raises directly to
// callers, who instead see their in-flight waiters failed by teardown.
func (c *Client) onReaderError(conn *transport.Conn, err error) {
	c.mu.Lock()
	current := c.conn
	c.mu.Unlock()
	if current != conn {
		// Already superseded (e.g. an explicit Stop raced us); nothing to do.
		return
	}
	c.logger.Error("htsp_reader_error", "error", err)
	c.teardown()
}
