package pvr

import (
	"context"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// RecordingStatus is the closed set of states a catalogued recording can be
// in (spec.md §3).
type RecordingStatus int

const (
	StatusUnknown RecordingStatus = iota
	StatusPlanned
	StatusRecording
	StatusFinished
	StatusFailed
)

func (s RecordingStatus) String() string {
	switch s {
	case StatusPlanned:
		return "planned"
	case StatusRecording:
		return "recording"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// statusFromState maps the HTSP dvrEntry "state" field per spec.md §4.4.
func statusFromState(state string) RecordingStatus {
	switch state {
	case "completed":
		return StatusFinished
	case "missed":
		return StatusFailed
	case "recording":
		return StatusRecording
	case "scheduled":
		return StatusPlanned
	default:
		return StatusUnknown
	}
}

// Task is one unit of deferred work handed to a TaskQueue. Refresh and
// delete work is represented this way so the manager only decides when work
// is needed, never how the host executes it.
type Task interface {
	Run(ctx context.Context) error
}

// TaskQueue defers Task execution, deduplicating by key the way the host's
// in-memory task queue does (spec.md §6 "Task queue: add(key, task,
// priority) for deferred refresh/delete work").
type TaskQueue interface {
	Add(key string, task Task, priority int)
}

// Entry is a catalogued recording resource, keyed by its vfs resource URL.
// Field names mirror spec.md §3's Recording entry exactly.
type Entry interface {
	Resource() string
	SetResource(string)

	Title() string
	SetTitle(string)
	ResourceTitle() string
	SetResourceTitle(string)
	Series() string
	SetSeries(string)
	Summary() string
	SetSummary(string)
	Description() string
	SetDescription(string)
	Episode() int64
	SetEpisode(int64)
	Channel() string
	SetChannel(string)

	Duration() int64
	SetDuration(int64)
	TimeStarted() int64
	SetTimeStarted(int64)
	TimeFinished() int64
	SetTimeFinished(int64)
	TimeSortable() int64
	SetTimeSortable(int64)

	RecordingStatus() RecordingStatus
	SetRecordingStatus(RecordingStatus)
	Refreshable() bool
	SetRefreshable(bool)
	Recorder() string
	SetRecorder(string)
}

// Catalogue is the host's content-directory, narrowed to what the manager
// needs (spec.md §6 "Catalogue: load-by-resource, create, attribute
// get/set, save, container add, list-by-type, transaction context").
type Catalogue interface {
	// LoadByResource returns ErrNotFound (via errors.Is) when resource isn't
	// catalogued yet.
	LoadByResource(ctx context.Context, resource string) (Entry, error)
	Create(ctx context.Context) Entry
	Save(ctx context.Context, e Entry) error
	ContainerAdd(ctx context.Context, e Entry) error
	ListByType(ctx context.Context, typ string) ([]Entry, error)
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deleter removes the catalogued entry identified by resource. Supplied by
// the host; the manager only decides when a resource must be deleted.
type Deleter interface {
	Delete(ctx context.Context, resource string) error
}

// EPGClient is the narrow slice of internal/htsp.Client the manager needs to
// resolve recording details and channel names, matched field-for-field to
// *htsp.Client's actual methods so it satisfies this interface without
// either package importing the other's concrete type.
type EPGClient interface {
	GetEPGEventDetails(ctx context.Context, eventID int64) (*htsmsg.Map, error)
	GetEPGDetails(ctx context.Context, channelID, start, stop int64, title string) (*htsmsg.Map, error)
	GetChannelName(ctx context.Context, channelID int64) (string, error)
}

// RecordingDetails is the canonical shape extracted from either an HTSP EPG
// event or the triggering dvrEntry message itself, before
// processRecordingDetails applies title/subtitle composition.
type RecordingDetails struct {
	Title            string
	HasTitle         bool
	ResourceTitle    string
	HasResourceTitle bool
	Subtitle         string
	HasSubtitle      bool
	Series           string
	HasSeries        bool
	Episode          int64
	HasEpisode       bool
	Description      string
	HasDesc          bool
	Summary          string
	HasSummary       bool
}

// DetailsProcessor is the Go stand-in for the original's
// "mp.pvr.tvheadend.MpPvrRecording.processRecordingDetails" hook, consulted
// when mp_tvheadend_recording_details_custom_processing is enabled. A nil
// return defers to the built-in canonicalization rules.
type DetailsProcessor func(details *RecordingDetails) *RecordingDetails

// MetadataRefreshFunc performs whatever post-canonicalization work the host
// wants against the newly refreshable entry. The manager only decides when
// to schedule it.
type MetadataRefreshFunc func(ctx context.Context, entryResource string) error
