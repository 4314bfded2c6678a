package main

import (
	"context"
	"sync"

	"github.com/htspvr/htsp-pvr-sync/internal/pvr"
)

// memEntry is a plain in-memory pvr.Entry. The demo binary has no real
// content-directory to talk to, so this stands in for the host's catalogue
// record just well enough to exercise the manager end to end.
type memEntry struct {
	mu sync.Mutex

	resource, title, resourceTitle, series, summary, description, channel, recorder string
	episode, duration, timeStarted, timeFinished, timeSortable                      int64
	status                                                                          pvr.RecordingStatus
	refreshable                                                                     bool
}

func (e *memEntry) Resource() string          { e.mu.Lock(); defer e.mu.Unlock(); return e.resource }
func (e *memEntry) SetResource(v string)      { e.mu.Lock(); defer e.mu.Unlock(); e.resource = v }
func (e *memEntry) Title() string             { e.mu.Lock(); defer e.mu.Unlock(); return e.title }
func (e *memEntry) SetTitle(v string)         { e.mu.Lock(); defer e.mu.Unlock(); e.title = v }
func (e *memEntry) ResourceTitle() string     { e.mu.Lock(); defer e.mu.Unlock(); return e.resourceTitle }
func (e *memEntry) SetResourceTitle(v string) { e.mu.Lock(); defer e.mu.Unlock(); e.resourceTitle = v }
func (e *memEntry) Series() string            { e.mu.Lock(); defer e.mu.Unlock(); return e.series }
func (e *memEntry) SetSeries(v string)        { e.mu.Lock(); defer e.mu.Unlock(); e.series = v }
func (e *memEntry) Summary() string           { e.mu.Lock(); defer e.mu.Unlock(); return e.summary }
func (e *memEntry) SetSummary(v string)       { e.mu.Lock(); defer e.mu.Unlock(); e.summary = v }
func (e *memEntry) Description() string       { e.mu.Lock(); defer e.mu.Unlock(); return e.description }
func (e *memEntry) SetDescription(v string)   { e.mu.Lock(); defer e.mu.Unlock(); e.description = v }
func (e *memEntry) Episode() int64            { e.mu.Lock(); defer e.mu.Unlock(); return e.episode }
func (e *memEntry) SetEpisode(v int64)        { e.mu.Lock(); defer e.mu.Unlock(); e.episode = v }
func (e *memEntry) Channel() string           { e.mu.Lock(); defer e.mu.Unlock(); return e.channel }
func (e *memEntry) SetChannel(v string)       { e.mu.Lock(); defer e.mu.Unlock(); e.channel = v }
func (e *memEntry) Duration() int64           { e.mu.Lock(); defer e.mu.Unlock(); return e.duration }
func (e *memEntry) SetDuration(v int64)       { e.mu.Lock(); defer e.mu.Unlock(); e.duration = v }
func (e *memEntry) TimeStarted() int64        { e.mu.Lock(); defer e.mu.Unlock(); return e.timeStarted }
func (e *memEntry) SetTimeStarted(v int64)    { e.mu.Lock(); defer e.mu.Unlock(); e.timeStarted = v }
func (e *memEntry) TimeFinished() int64       { e.mu.Lock(); defer e.mu.Unlock(); return e.timeFinished }
func (e *memEntry) SetTimeFinished(v int64)   { e.mu.Lock(); defer e.mu.Unlock(); e.timeFinished = v }
func (e *memEntry) TimeSortable() int64       { e.mu.Lock(); defer e.mu.Unlock(); return e.timeSortable }
func (e *memEntry) SetTimeSortable(v int64)   { e.mu.Lock(); defer e.mu.Unlock(); e.timeSortable = v }
func (e *memEntry) RecordingStatus() pvr.RecordingStatus { e.mu.Lock(); defer e.mu.Unlock(); return e.status }
func (e *memEntry) SetRecordingStatus(v pvr.RecordingStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = v
}
func (e *memEntry) Refreshable() bool     { e.mu.Lock(); defer e.mu.Unlock(); return e.refreshable }
func (e *memEntry) SetRefreshable(v bool) { e.mu.Lock(); defer e.mu.Unlock(); e.refreshable = v }
func (e *memEntry) Recorder() string      { e.mu.Lock(); defer e.mu.Unlock(); return e.recorder }
func (e *memEntry) SetRecorder(v string)  { e.mu.Lock(); defer e.mu.Unlock(); e.recorder = v }

// memCatalogue is a process-local pvr.Catalogue: every recording's state
// lives only as long as the demo binary runs.
type memCatalogue struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

func newMemCatalogue() *memCatalogue {
	return &memCatalogue{entries: make(map[string]*memEntry)}
}

func (c *memCatalogue) LoadByResource(ctx context.Context, resource string) (pvr.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[resource]
	if !ok {
		return nil, pvr.ErrNotFound
	}
	return e, nil
}

func (c *memCatalogue) Create(ctx context.Context) pvr.Entry { return &memEntry{} }

func (c *memCatalogue) Save(ctx context.Context, e pvr.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Resource()] = e.(*memEntry)
	return nil
}

func (c *memCatalogue) ContainerAdd(ctx context.Context, e pvr.Entry) error {
	return c.Save(ctx, e)
}

func (c *memCatalogue) ListByType(ctx context.Context, typ string) ([]pvr.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pvr.Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out, nil
}

// WithTransaction has nothing to roll back in an in-memory map; it simply
// runs fn.
func (c *memCatalogue) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (c *memCatalogue) delete(resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, resource)
}

// memDeleter removes a catalogued resource from the same in-memory store.
type memDeleter struct {
	catalogue *memCatalogue
}

func (d memDeleter) Delete(ctx context.Context, resource string) error {
	d.catalogue.delete(resource)
	return nil
}
