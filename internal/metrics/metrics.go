// Package metrics exposes Prometheus counters/gauges for the HTSP client,
// PVR manager and VFS streamer, plus a /metrics HTTP endpoint. Structure
// mirrors the teacher's CAN-bridge metrics package: promauto registration,
// a mirrored atomic Snapshot for non-Prometheus logging, and a readiness
// hook consumed by /ready.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/htspvr/htsp-pvr-sync/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	CallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "htsp_calls_total",
		Help: "Total RPC calls issued, by method and outcome (ok|error|timeout).",
	}, []string{"method", "outcome"})

	WaitersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "htsp_waiters_active",
		Help: "Number of in-flight calls awaiting a response.",
	})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "htsp_reconnects_total",
		Help: "Total session reconnects after a lost connection.",
	})

	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "htsp_events_dispatched_total",
		Help: "Total server-initiated events dispatched to subscribers, by method.",
	}, []string{"method"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "htsp_events_dropped_total",
		Help: "Total messages with an unrecognized seq, dropped by the reader.",
	})

	PVRRefreshScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pvr_refresh_scheduled_total",
		Help: "Total recording-refresh tasks scheduled.",
	})

	PVRDeleteScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pvr_delete_scheduled_total",
		Help: "Total recording-deletion tasks scheduled.",
	})

	PVROrphansSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pvr_orphans_swept_total",
		Help: "Total locally catalogued recordings deleted as orphans after initial sync.",
	})

	StreamerBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_streamer_bytes_read_total",
		Help: "Total bytes returned by the streamer's Read.",
	})

	StreamerSeeks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vfs_streamer_seeks_total",
		Help: "Total Seek calls issued through the streamer.",
	})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrTransport = "transport"
	ErrFraming   = "framing"
	ErrProtocol  = "protocol"
	ErrTimeout   = "timeout"
	ErrValue     = "value"
	ErrNotFound  = "not_found"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on a new HTTP server bound to addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters so a deployment without Prometheus scraping can
// still log periodic snapshots (see cmd/htsp-pvr-agent's metrics logger).
var (
	localCallsOK      uint64
	localCallsError   uint64
	localCallsTimeout uint64
	localReconnects   uint64
	localEvents       uint64
	localEventsDrop   uint64
	localRefresh      uint64
	localDelete       uint64
	localOrphans      uint64
	localBytesRead    uint64
	localSeeks        uint64
	localErrors       uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	CallsOK      uint64
	CallsError   uint64
	CallsTimeout uint64
	Reconnects   uint64
	Events       uint64
	EventsDrop   uint64
	Refresh      uint64
	Delete       uint64
	Orphans      uint64
	BytesRead    uint64
	Seeks        uint64
	Errors       uint64
}

// Snap returns the current Snapshot.
func Snap() Snapshot {
	return Snapshot{
		CallsOK:      atomic.LoadUint64(&localCallsOK),
		CallsError:   atomic.LoadUint64(&localCallsError),
		CallsTimeout: atomic.LoadUint64(&localCallsTimeout),
		Reconnects:   atomic.LoadUint64(&localReconnects),
		Events:       atomic.LoadUint64(&localEvents),
		EventsDrop:   atomic.LoadUint64(&localEventsDrop),
		Refresh:      atomic.LoadUint64(&localRefresh),
		Delete:       atomic.LoadUint64(&localDelete),
		Orphans:      atomic.LoadUint64(&localOrphans),
		BytesRead:    atomic.LoadUint64(&localBytesRead),
		Seeks:        atomic.LoadUint64(&localSeeks),
		Errors:       atomic.LoadUint64(&localErrors),
	}
}

// RecordCall increments the per-method/outcome counter and its local mirror.
func RecordCall(method, outcome string) {
	CallsTotal.WithLabelValues(method, outcome).Inc()
	switch outcome {
	case "ok":
		atomic.AddUint64(&localCallsOK, 1)
	case "timeout":
		atomic.AddUint64(&localCallsTimeout, 1)
	default:
		atomic.AddUint64(&localCallsError, 1)
	}
}

// SetWaiters records the current number of in-flight calls.
func SetWaiters(n int) { WaitersActive.Set(float64(n)) }

// IncReconnect records a session reconnect.
func IncReconnect() {
	Reconnects.Inc()
	atomic.AddUint64(&localReconnects, 1)
}

// IncEventDispatched records a server event fanned out to subscribers.
func IncEventDispatched(method string) {
	EventsDispatched.WithLabelValues(method).Inc()
	atomic.AddUint64(&localEvents, 1)
}

// IncEventDropped records an event/response with an unrecognized seq.
func IncEventDropped() {
	EventsDropped.Inc()
	atomic.AddUint64(&localEventsDrop, 1)
}

// IncPVRRefreshScheduled records a scheduled refresh task.
func IncPVRRefreshScheduled() {
	PVRRefreshScheduled.Inc()
	atomic.AddUint64(&localRefresh, 1)
}

// IncPVRDeleteScheduled records a scheduled delete task.
func IncPVRDeleteScheduled() {
	PVRDeleteScheduled.Inc()
	atomic.AddUint64(&localDelete, 1)
}

// IncPVROrphansSwept records an orphaned entry deleted after initial sync.
func IncPVROrphansSwept() {
	PVROrphansSwept.Inc()
	atomic.AddUint64(&localOrphans, 1)
}

// AddStreamerBytesRead records n bytes returned by a streamer Read.
func AddStreamerBytesRead(n int) {
	StreamerBytesRead.Add(float64(n))
	atomic.AddUint64(&localBytesRead, uint64(n))
}

// IncStreamerSeek records a streamer Seek call.
func IncStreamerSeek() {
	StreamerSeeks.Inc()
	atomic.AddUint64(&localSeeks, 1)
}

// IncError increments the generic by-subsystem error counter.
func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrTransport, ErrFraming, ErrProtocol, ErrTimeout, ErrValue, ErrNotFound} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present, defaulting
// to true so the endpoint doesn't flap before startup wiring runs.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
