package pvr

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/events"
	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

func sleep() { time.Sleep(5 * time.Millisecond) }

func testLogger() *slog.Logger { return slog.Default() }

// fakeEntry is an in-memory Entry.
type fakeEntry struct {
	resource, title, resourceTitle, series, summary, description, channel, recorder string
	episode, duration, timeStarted, timeFinished, timeSortable                      int64
	status                                                                          RecordingStatus
	refreshable                                                                     bool
}

func (e *fakeEntry) Resource() string           { return e.resource }
func (e *fakeEntry) SetResource(v string)       { e.resource = v }
func (e *fakeEntry) Title() string              { return e.title }
func (e *fakeEntry) SetTitle(v string)          { e.title = v }
func (e *fakeEntry) ResourceTitle() string      { return e.resourceTitle }
func (e *fakeEntry) SetResourceTitle(v string)  { e.resourceTitle = v }
func (e *fakeEntry) Series() string             { return e.series }
func (e *fakeEntry) SetSeries(v string)         { e.series = v }
func (e *fakeEntry) Summary() string            { return e.summary }
func (e *fakeEntry) SetSummary(v string)        { e.summary = v }
func (e *fakeEntry) Description() string        { return e.description }
func (e *fakeEntry) SetDescription(v string)     { e.description = v }
func (e *fakeEntry) Episode() int64             { return e.episode }
func (e *fakeEntry) SetEpisode(v int64)         { e.episode = v }
func (e *fakeEntry) Channel() string            { return e.channel }
func (e *fakeEntry) SetChannel(v string)        { e.channel = v }
func (e *fakeEntry) Duration() int64            { return e.duration }
func (e *fakeEntry) SetDuration(v int64)        { e.duration = v }
func (e *fakeEntry) TimeStarted() int64         { return e.timeStarted }
func (e *fakeEntry) SetTimeStarted(v int64)     { e.timeStarted = v }
func (e *fakeEntry) TimeFinished() int64        { return e.timeFinished }
func (e *fakeEntry) SetTimeFinished(v int64)    { e.timeFinished = v }
func (e *fakeEntry) TimeSortable() int64        { return e.timeSortable }
func (e *fakeEntry) SetTimeSortable(v int64)    { e.timeSortable = v }
func (e *fakeEntry) RecordingStatus() RecordingStatus     { return e.status }
func (e *fakeEntry) SetRecordingStatus(v RecordingStatus) { e.status = v }
func (e *fakeEntry) Refreshable() bool          { return e.refreshable }
func (e *fakeEntry) SetRefreshable(v bool)      { e.refreshable = v }
func (e *fakeEntry) Recorder() string           { return e.recorder }
func (e *fakeEntry) SetRecorder(v string)       { e.recorder = v }

// fakeCatalogue is an in-memory Catalogue keyed by resource.
type fakeCatalogue struct {
	mu      sync.Mutex
	entries map[string]*fakeEntry
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{entries: make(map[string]*fakeEntry)}
}

func (c *fakeCatalogue) LoadByResource(ctx context.Context, resource string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[resource]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (c *fakeCatalogue) Create(ctx context.Context) Entry { return &fakeEntry{} }

func (c *fakeCatalogue) Save(ctx context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Resource()] = e.(*fakeEntry)
	return nil
}

func (c *fakeCatalogue) ContainerAdd(ctx context.Context, e Entry) error {
	return c.Save(ctx, e)
}

func (c *fakeCatalogue) ListByType(ctx context.Context, typ string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out, nil
}

func (c *fakeCatalogue) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeTaskQueue runs every task synchronously and records what was added.
type fakeTaskQueue struct {
	mu   sync.Mutex
	keys []string
}

func (q *fakeTaskQueue) Add(key string, task Task, priority int) {
	q.mu.Lock()
	q.keys = append(q.keys, key)
	q.mu.Unlock()
	_ = task.Run(context.Background())
}

func (q *fakeTaskQueue) has(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range q.keys {
		if k == key {
			return true
		}
	}
	return false
}

// fakeEPG never resolves anything; tests rely on messages carrying their
// own description/subtitle/summary or title.
type fakeEPG struct{}

func (fakeEPG) GetEPGEventDetails(ctx context.Context, eventID int64) (*htsmsg.Map, error) {
	return nil, ErrNoMatch
}
func (fakeEPG) GetEPGDetails(ctx context.Context, channelID, start, stop int64, title string) (*htsmsg.Map, error) {
	return nil, ErrNoMatch
}
func (fakeEPG) GetChannelName(ctx context.Context, channelID int64) (string, error) {
	return "Channel One", nil
}

func dvrEntryMsg(id, start, stop int64, title, state string) *htsmsg.Map {
	m := htsmsg.NewMap()
	m.SetInt64("id", id)
	m.SetInt64("start", start)
	m.SetInt64("stop", stop)
	m.SetStr("title", title)
	m.SetStr("state", state)
	return m
}

// TestStatusMapping covers Testable Property 14.
func TestStatusMapping(t *testing.T) {
	cases := map[string]RecordingStatus{
		"completed": StatusFinished,
		"missed":    StatusFailed,
		"recording": StatusRecording,
		"scheduled": StatusPlanned,
		"other":     StatusUnknown,
	}
	for state, want := range cases {
		if got := statusFromState(state); got != want {
			t.Errorf("statusFromState(%q) = %v, want %v", state, got, want)
		}
	}
}

// TestOrphanSweep covers Testable Property 12 and scenario S2.
func TestOrphanSweep(t *testing.T) {
	catalogue := newFakeCatalogue()
	// Pre-existing entry for id C that is never announced during sync.
	catalogue.entries[ResourceURL(99)] = &fakeEntry{resource: ResourceURL(99), title: "Stale"}

	queue := &fakeTaskQueue{}
	mgr := NewManager(catalogue, queue, fakeEPG{})
	bus := events.New()
	mgr.Start(bus)
	defer mgr.Stop()

	bus.Publish(events.Event{Method: "dvrEntryAdd", Body: dvrEntryMsg(7, 1000, 2000, "X", "completed")})
	bus.Publish(events.Event{Method: "dvrEntryAdd", Body: dvrEntryMsg(8, 1000, 2000, "Y", "completed")})

	waitFor(t, func() bool {
		_, errA := catalogue.LoadByResource(context.Background(), ResourceURL(7))
		_, errB := catalogue.LoadByResource(context.Background(), ResourceURL(8))
		return errA == nil && errB == nil
	})

	mgr.onInitialSyncCompleted(context.Background())

	if !queue.has("pvr.delete." + ResourceURL(99)) {
		t.Fatalf("expected orphan delete task for stale entry 99")
	}
	if queue.has("pvr.delete." + ResourceURL(7)) || queue.has("pvr.delete." + ResourceURL(8)) {
		t.Fatalf("synced entries 7/8 must not be deleted")
	}

	mgr.mu.Lock()
	cache := mgr.recordingsCache
	mgr.mu.Unlock()
	if cache != nil {
		t.Fatalf("recordings cache should be nil (post-sync) after reconciliation")
	}
}

// TestDeleteEvent covers scenario S3.
func TestDeleteEvent(t *testing.T) {
	catalogue := newFakeCatalogue()
	queue := &fakeTaskQueue{}
	mgr := NewManager(catalogue, queue, fakeEPG{})
	bus := events.New()
	mgr.Start(bus)
	defer mgr.Stop()

	bus.Publish(events.Event{Method: "dvrEntryAdd", Body: dvrEntryMsg(7, 1000, 2000, "X", "completed")})
	waitFor(t, func() bool { return queue.has("pvr.refresh.7") })

	bus.Publish(events.Event{Method: "dvrEntryDelete", Body: func() *htsmsg.Map {
		m := htsmsg.NewMap()
		m.SetInt64("id", 7)
		return m
	}()})
	waitFor(t, func() bool { return queue.has("pvr.delete.7") })
}

// TestRefreshIdempotence covers Testable Property 13.
func TestRefreshIdempotence(t *testing.T) {
	catalogue := newFakeCatalogue()
	queue := &fakeTaskQueue{}
	task := func() *refreshTask {
		return &refreshTask{
			msg:          dvrEntryMsg(42, 5000, 6000, "Show", "completed"),
			epg:          fakeEPG{},
			catalogue:    catalogue,
			taskQueue:    queue,
			recorderName: "tvheadend",
			logger:       nil,
		}
	}
	t1 := task()
	t1.logger = testLogger()
	if err := t1.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	e1, err := catalogue.LoadByResource(context.Background(), ResourceURL(42))
	if err != nil {
		t.Fatalf("entry missing after first run: %v", err)
	}

	t2 := task()
	t2.logger = testLogger()
	if err := t2.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	e2, err := catalogue.LoadByResource(context.Background(), ResourceURL(42))
	if err != nil {
		t.Fatalf("entry missing after second run: %v", err)
	}

	if e1.(*fakeEntry).title != e2.(*fakeEntry).title || e1.(*fakeEntry).status != e2.(*fakeEntry).status {
		t.Fatalf("repeated refresh produced different persisted fields")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		sleep()
	}
	t.Fatalf("condition never became true")
}
