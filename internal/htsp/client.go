// Package htsp implements the HTSP RPC client (C3): session establishment,
// authentication, sequence allocation and response demultiplexing, server
// event dispatch, and a typed helper surface over the generic Call. Package
// internal/transport owns the socket; internal/htsmsg owns the wire codec.
package htsp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/events"
	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
	"github.com/htspvr/htsp-pvr-sync/internal/logging"
	"github.com/htspvr/htsp-pvr-sync/internal/transport"
)

// State is the client session state machine (spec.md §4.3):
//
//	Idle ── start() ──▶ Connecting ── hello ok ──▶ Ready
//	                                                   │
//	                                                   ├── authenticate ok ──▶ Authenticated
//	                                                   └── auth fail ─────────▶ Idle (error)
//	Authenticated ── socket loss / stop() ──▶ LostConnection ── next call ──▶ Connecting
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateAuthenticated
	StateLostConnection
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateAuthenticated:
		return "authenticated"
	case StateLostConnection:
		return "lost_connection"
	default:
		return "unknown"
	}
}

const (
	minHTSPVersion            = 8
	channelGetMinVersion      = 14
	transcodingMinVersion     = 11
	clientHTSPVersion         = 25
	defaultClientName         = "mp.tvheadend"
	defaultSocketTimeout      = 30 * time.Second
	defaultDialTimeout        = 10 * time.Second
	seqWrap             int64 = 32769
)

// waiter is a one-shot result cell for an in-flight call, indexed by seq in
// Client.waiters. Exactly one of result/err is ever set before done closes.
type waiter struct {
	result *htsmsg.Map
	err    error
	done   chan struct{}
}

// Client is an HTSP session. The zero value is not usable; use New.
type Client struct {
	addr          string
	network       transport.Network
	clientName    string
	clientVersion string
	username      string
	password      string
	socketTimeout time.Duration
	dialTimeout   time.Duration
	logger        *slog.Logger
	bus           *events.Bus

	mu     sync.Mutex // guards conn, state, session fields below
	conn   *transport.Conn
	state  State
	digest []byte // SHA1(password || challenge), set once authenticate succeeds

	serverName           string
	serverVersion        string
	htspVersion          int
	channelGetSupported  bool
	transcodingSupported bool

	authMu sync.Mutex // only one caller performs hello/authenticate at a time

	seqMu sync.Mutex
	seq   int64

	waitersMu sync.Mutex
	waiters   map[int64]*waiter

	cacheMu      sync.RWMutex
	channelCache map[int64]string

	active atomic.Bool

	readerWG sync.WaitGroup
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithAddr sets the host:port to dial. Default localhost:9982.
func WithAddr(addr string) Option { return func(c *Client) { c.addr = addr } }

// WithNetwork selects tcp4 or tcp6. Default tcp4.
func WithNetwork(n transport.Network) Option { return func(c *Client) { c.network = n } }

// WithCredentials configures username/password for the authenticate step.
// If username is empty, no authenticate call is ever sent.
func WithCredentials(username, password string) Option {
	return func(c *Client) { c.username = username; c.password = password }
}

// WithSocketTimeout bounds how long a single Call waits for its response.
func WithSocketTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.socketTimeout = d
		}
	}
}

// WithDialTimeout bounds how long session establishment waits to connect.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithClientIdentity overrides the clientname/clientversion sent in hello.
func WithClientIdentity(name, version string) Option {
	return func(c *Client) {
		if name != "" {
			c.clientName = name
		}
		c.clientVersion = version
	}
}

// WithLogger overrides the package-default logger accessor.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEventBus injects a bus to publish server events on. If omitted, New
// allocates a private one.
func WithEventBus(b *events.Bus) Option {
	return func(c *Client) {
		if b != nil {
			c.bus = b
		}
	}
}

// New constructs a Client. The session is not established until the first
// call or an explicit Start.
func New(opts ...Option) *Client {
	c := &Client{
		addr:          "localhost:9982",
		network:       transport.NetworkIPv4,
		clientName:    defaultClientName,
		clientVersion: "1.0",
		socketTimeout: defaultSocketTimeout,
		dialTimeout:   defaultDialTimeout,
		logger:        logging.L(),
		waiters:       make(map[int64]*waiter),
		channelCache:  make(map[int64]string),
	}
	for _, o := range opts {
		o(c)
	}
	if c.bus == nil {
		c.bus = events.New()
	}
	return c
}

// Events returns the bus server-initiated messages are published on.
func (c *Client) Events() *events.Bus { return c.bus }

// Subscribe registers h to receive every server-initiated event.
func (c *Client) Subscribe(h events.Handler) *events.Subscription { return c.bus.Subscribe(h) }

// Unsubscribe removes a previously registered handler.
func (c *Client) Unsubscribe(sub *events.Subscription) { sub.Unsubscribe() }

func (c *Client) getState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// IsActive reports whether the client has an open socket whose session has
// not been marked lost. It turns true as soon as the socket is dialed, before
// hello/authenticate have completed.
func (c *Client) IsActive() bool {
	return c.active.Load() && c.getState() != StateLostConnection
}

// GetServerName lazily establishes the session and returns the hello-
// reported server name.
func (c *Client) GetServerName(ctx context.Context) (string, error) {
	if err := c.ensureSession(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverName, nil
}

// GetServerVersion lazily establishes the session and returns the hello-
// reported server version string.
func (c *Client) GetServerVersion(ctx context.Context) (string, error) {
	if err := c.ensureSession(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverVersion, nil
}

// Start establishes the session eagerly rather than waiting for the first
// Call. Returns the same error a lazy Call would surface.
func (c *Client) Start(ctx context.Context) error {
	return c.ensureSession(ctx)
}

// Stop tears the session down: fails every outstanding waiter with
// ErrSessionLost and closes the socket. Safe to call when already stopped.
func (c *Client) Stop() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.active.Store(false)
	if conn != nil {
		_ = conn.Close()
	}
	c.failAllWaiters(newError(KindTransport, "stop", ErrSessionLost))
	c.readerWG.Wait()
}

func (c *Client) nextSeq() int64 {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	s := c.seq
	c.seq = (c.seq + 1) % seqWrap
	return s
}

func (c *Client) resetSeq() {
	c.seqMu.Lock()
	c.seq = 0
	c.seqMu.Unlock()
}

// WaiterCount returns the number of calls currently awaiting a response,
// for callers that want to log it alongside metrics.Snap().
func (c *Client) WaiterCount() int {
	c.waitersMu.Lock()
	defer c.waitersMu.Unlock()
	return len(c.waiters)
}
