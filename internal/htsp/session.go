package htsp

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
	"github.com/htspvr/htsp-pvr-sync/internal/transport"
)

// ensureSession guards session establishment with authMu so concurrent
// callers racing into a fresh session perform exactly one hello and at most
// one authenticate (Testable Property 9); the rest wait on authMu and find
// the session already Authenticated on wake. The state reaches Authenticated
// even when no credentials are configured.
func (c *Client) ensureSession(ctx context.Context) error {
	if c.active.Load() && c.getState() == StateAuthenticated {
		return nil
	}

	c.authMu.Lock()
	defer c.authMu.Unlock()

	// Re-check: another caller may have finished establishing the session
	// while we waited for authMu.
	if c.active.Load() && c.getState() == StateAuthenticated {
		return nil
	}

	return c.establish(ctx)
}

func (c *Client) establish(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()
	conn, err := transport.Dial(dialCtx, c.network, c.addr, c.dialTimeout)
	if err != nil {
		c.setState(StateIdle)
		metrics.IncError(metrics.ErrTransport)
		return newError(KindTransport, "dial", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.resetSeq()
	c.active.Store(true)

	c.readerWG.Add(1)
	go c.readLoop(conn)

	hello := htsmsg.NewMap()
	hello.SetStr("method", "hello")
	hello.SetInt64("htspversion", clientHTSPVersion)
	hello.SetStr("clientname", c.clientName)
	hello.SetStr("clientversion", c.clientVersion)

	resp, err := c.callOn(ctx, hello)
	if err != nil {
		c.abort(StateIdle)
		return err
	}

	htspVersion, _ := resp.GetInt64("htspversion")
	if htspVersion < minHTSPVersion {
		c.abort(StateIdle)
		return newError(KindProtocol, "hello", fmt.Errorf("%w: %d", ErrProtocolVersion, htspVersion))
	}

	serverName, _ := resp.GetStr("servername")
	serverVersion, _ := resp.GetStr("serverversion")
	challenge, _ := resp.GetBin("challenge")

	c.mu.Lock()
	c.serverName = serverName
	c.serverVersion = serverVersion
	c.htspVersion = int(htspVersion)
	c.channelGetSupported = htspVersion >= channelGetMinVersion
	c.transcodingSupported = htspVersion >= transcodingMinVersion
	c.mu.Unlock()

	c.setState(StateReady)

	if c.username != "" {
		digest := sha1.Sum(append([]byte(c.password), challenge...))
		auth := htsmsg.NewMap()
		auth.SetStr("method", "authenticate")
		auth.SetStr("username", c.username)
		auth.SetBin("digest", digest[:])

		authResp, err := c.callOn(ctx, auth)
		if err != nil {
			c.abort(StateIdle)
			return err
		}
		if _, denied := authResp.GetStr("noaccess"); denied {
			c.abort(StateIdle)
			return newError(KindProtocol, "authenticate", ErrAuthDenied)
		}

		c.mu.Lock()
		c.digest = digest[:]
		c.mu.Unlock()
	}

	c.setState(StateAuthenticated)

	c.mu.Lock()
	needsCache := !c.channelGetSupported
	c.mu.Unlock()
	if needsCache {
		c.ensureChannelCacheSubscription()
	}

	return nil
}

// teardown closes the socket after the session was already established (or
// while the reader loop is live) and marks it LostConnection, so the next
// call reconnects from scratch. Used for mid-session socket/decoder errors.
func (c *Client) teardown() {
	c.abort(StateLostConnection)
	metrics.IncReconnect()
}

// abort closes the socket and fails outstanding waiters without counting a
// reconnect, landing in target state. Used when session establishment
// itself fails (bad hello version, auth denied) — per the state diagram
// these return to Idle, not LostConnection, since no session was ever live.
func (c *Client) abort(target State) {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	c.active.Store(false)
	c.setState(target)
	if conn != nil {
		_ = conn.Close()
	}
	c.failAllWaiters(newError(KindTransport, "abort", ErrSessionLost))
}

func (c *Client) failAllWaiters(err error) {
	c.waitersMu.Lock()
	ws := c.waiters
	c.waiters = make(map[int64]*waiter)
	c.waitersMu.Unlock()
	for _, w := range ws {
		w.err = err
		close(w.done)
	}
	metrics.SetWaiters(0)
}
