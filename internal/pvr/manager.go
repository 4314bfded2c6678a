// Package pvr implements the recording-synchronization manager (C4): it
// subscribes to the HTSP client's event bus, keeps a catalogue of DVR
// recordings in sync with the server's, and schedules refresh/delete work
// on an external task queue rather than performing it inline.
package pvr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/htspvr/htsp-pvr-sync/internal/events"
	"github.com/htspvr/htsp-pvr-sync/internal/logging"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
)

// Manager reconciles the host's recording catalogue against Tvheadend's DVR
// entries, driven entirely by server events (spec.md §4.4).
type Manager struct {
	catalogue        Catalogue
	taskQueue        TaskQueue
	epg              EPGClient
	deleter          Deleter
	recorderName     string
	detailsProcessor DetailsProcessor
	metadataRefresh  MetadataRefreshFunc
	logger           *slog.Logger

	mu              sync.Mutex
	recordingsCache []string // non-nil: accumulating during sync; nil: post-sync
	sub             *events.Subscription
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithDeleter supplies the collaborator that performs actual deletions.
func WithDeleter(d Deleter) Option { return func(m *Manager) { m.deleter = d } }

// WithDetailsProcessor installs the mp_tvheadend_recording_details_custom_processing hook.
func WithDetailsProcessor(p DetailsProcessor) Option {
	return func(m *Manager) { m.detailsProcessor = p }
}

// WithMetadataRefresh installs the post-refresh hook run once an entry
// becomes refreshable.
func WithMetadataRefresh(fn MetadataRefreshFunc) Option {
	return func(m *Manager) { m.metadataRefresh = fn }
}

// WithRecorderName overrides the recorder attribute stamped on new entries.
// Default "tvheadend".
func WithRecorderName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.recorderName = name
		}
	}
}

// WithLogger overrides the package-default logger accessor.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager constructs a Manager. catalogue, taskQueue, and epg are
// required collaborators; Start subscribes it to bus.
func NewManager(catalogue Catalogue, taskQueue TaskQueue, epg EPGClient, opts ...Option) *Manager {
	m := &Manager{
		catalogue:       catalogue,
		taskQueue:       taskQueue,
		epg:             epg,
		recorderName:    "tvheadend",
		logger:          logging.L(),
		recordingsCache: []string{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start subscribes the manager to bus. Call once; Stop unsubscribes.
func (m *Manager) Start(bus *events.Bus) {
	m.mu.Lock()
	if m.sub != nil {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	sub := bus.Subscribe(m.handleEvent)
	m.mu.Lock()
	m.sub = sub
	m.mu.Unlock()
}

// Stop unsubscribes from the bus. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// handleEvent is the Subscribe callback; dispatched on its own goroutine by
// the bus, so it never blocks the HTSP reader loop.
func (m *Manager) handleEvent(ev events.Event) {
	switch ev.Method {
	case "dvrEntryAdd", "dvrEntryUpdate":
		m.onDvrEntryUpserted(ev)
	case "dvrEntryDelete":
		m.onDvrEntryDeleted(ev)
	case "initialSyncCompleted":
		m.onInitialSyncCompleted(context.Background())
	}
}

func (m *Manager) onDvrEntryUpserted(ev events.Event) {
	id, ok := ev.Body.GetInt64("id")
	if !ok {
		return
	}
	resource := ResourceURL(id)

	task := &refreshTask{
		msg:              ev.Body,
		epg:              m.epg,
		catalogue:        m.catalogue,
		taskQueue:        m.taskQueue,
		recorderName:     m.recorderName,
		detailsProcessor: m.detailsProcessor,
		metadataRefresh:  m.metadataRefresh,
		logger:           m.logger,
	}
	m.taskQueue.Add(fmt.Sprintf("pvr.refresh.%d", id), task, 0)
	metrics.IncPVRRefreshScheduled()

	m.mu.Lock()
	if m.recordingsCache != nil {
		m.recordingsCache = append(m.recordingsCache, resource)
	}
	m.mu.Unlock()
}

func (m *Manager) onDvrEntryDeleted(ev events.Event) {
	id, ok := ev.Body.GetInt64("id")
	if !ok {
		return
	}
	resource := ResourceURL(id)

	task := &deleteTask{resource: resource, deleter: m.deleter}
	m.taskQueue.Add(fmt.Sprintf("pvr.delete.%d", id), task, 0)
	metrics.IncPVRDeleteScheduled()

	m.mu.Lock()
	if m.recordingsCache != nil {
		m.recordingsCache = removeString(m.recordingsCache, resource)
	}
	m.mu.Unlock()
}

// onInitialSyncCompleted reconciles the catalogue against everything seen
// during sync, scheduling a deletion task for every locally catalogued
// recording whose resource never appeared (Invariant 4), then discards the
// cache (spec.md §4.4's two-state sentinel).
func (m *Manager) onInitialSyncCompleted(ctx context.Context) {
	m.mu.Lock()
	cache := m.recordingsCache
	m.mu.Unlock()
	if cache == nil {
		return // already reconciled; a duplicate event is a no-op
	}

	seen := make(map[string]struct{}, len(cache))
	for _, r := range cache {
		seen[r] = struct{}{}
	}

	entries, err := m.catalogue.ListByType(ctx, RecordingContentType)
	if err != nil {
		m.logger.Error("pvr_orphan_sweep_list_failed", "error", err)
	} else {
		for _, e := range entries {
			resource := e.Resource()
			if _, ok := seen[resource]; ok {
				continue
			}
			m.taskQueue.Add("pvr.delete."+resource, &deleteTask{resource: resource, deleter: m.deleter}, 0)
			metrics.IncPVROrphansSwept()
		}
	}

	m.mu.Lock()
	m.recordingsCache = nil
	m.mu.Unlock()
}

func removeString(ss []string, v string) []string {
	for i, s := range ss {
		if s == v {
			return append(ss[:i], ss[i+1:]...)
		}
	}
	return ss
}
