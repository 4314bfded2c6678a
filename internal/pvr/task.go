package pvr

import (
	"context"
	"errors"
	"log/slog"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// refreshTask carries out spec.md §4.4's per-DVR-entry refresh algorithm:
// resolve status and details, then update or create the catalogued entry,
// finally scheduling a metadata refresh if the result is newly refreshable.
// Grounded on original_source's ResourcePvrRecordingTvheadendRefresh.
type refreshTask struct {
	msg              *htsmsg.Map
	epg              EPGClient
	catalogue        Catalogue
	taskQueue        TaskQueue
	recorderName     string
	detailsProcessor DetailsProcessor
	metadataRefresh  MetadataRefreshFunc
	logger           *slog.Logger
}

func (t *refreshTask) Run(ctx context.Context) error {
	id, _ := t.msg.GetInt64("id")
	state, _ := t.msg.GetStr("state")
	status := statusFromState(state)
	resource := ResourceURL(id)

	var details *RecordingDetails
	if messageHasDetails(t.msg) {
		details = detailsFromMap(t.msg)
	} else {
		details = t.fetchDetails(ctx)
	}

	entry, err := t.catalogue.LoadByResource(ctx, resource)
	var refreshable bool
	switch {
	case err == nil:
		refreshable = t.applyUpdate(ctx, entry, status, details)
	case errors.Is(err, ErrNotFound):
		entry, refreshable, err = t.applyCreate(ctx, resource, status, details)
		if err != nil {
			return newError(KindTransport, "create_entry", id, err)
		}
	default:
		return newError(KindTransport, "load_by_resource", id, err)
	}

	if refreshable && t.taskQueue != nil {
		key := "pvr.metadata_refresh." + entry.Resource()
		t.taskQueue.Add(key, &metadataRefreshTask{resource: entry.Resource(), fn: t.metadataRefresh}, 1)
	}
	return nil
}

// applyUpdate mutates an existing entry in place, returning whether the
// resulting state is refreshable. Mirrors the original's is_refreshable
// computation: only a fresh transition into Finished (not a re-save of an
// already-non-refreshable Finished entry) counts.
func (t *refreshTask) applyUpdate(ctx context.Context, entry Entry, status RecordingStatus, details *RecordingDetails) bool {
	oldStatus := entry.RecordingStatus()
	oldRefreshable := entry.Refreshable()

	refreshable := status == StatusFinished
	changed := 0

	if oldStatus != status {
		entry.SetRecordingStatus(status)
		changed++
	} else if !oldRefreshable {
		refreshable = false
	}

	if start, ok := t.msg.GetInt64("start"); ok {
		entry.SetTimeStarted(start)
		entry.SetTimeSortable(start)
		changed++
	}
	if stop, ok := t.msg.GetInt64("stop"); ok {
		if start, ok := t.msg.GetInt64("start"); ok {
			entry.SetDuration(stop - start)
		}
		entry.SetTimeFinished(stop)
		changed++
	}

	if processed := processRecordingDetails(details, t.detailsProcessor); processed != nil {
		if processed.HasTitle {
			entry.SetTitle(processed.Title)
			changed++
		}
		if processed.HasResourceTitle {
			entry.SetResourceTitle(processed.ResourceTitle)
			changed++
		}
		if processed.HasSeries {
			entry.SetSeries(processed.Series)
			changed++
		}
		if processed.HasEpisode {
			entry.SetEpisode(processed.Episode)
			changed++
		}
		if processed.HasDesc {
			entry.SetDescription(processed.Description)
			changed++
		}
		if processed.HasSummary {
			entry.SetSummary(processed.Summary)
			changed++
		} else if processed.HasSubtitle {
			entry.SetSummary(processed.Subtitle)
			changed++
		}
	}

	if changed > 0 {
		if err := t.catalogue.Save(ctx, entry); err != nil {
			t.logger.Warn("pvr_save_failed", "resource", entry.Resource(), "error", err)
		}
	}
	return refreshable
}

// applyCreate builds a brand-new catalogue entry for a DVR id seen for the
// first time, inside a transaction per the original's TransactionContext.
func (t *refreshTask) applyCreate(ctx context.Context, resource string, status RecordingStatus, details *RecordingDetails) (Entry, bool, error) {
	refreshable := status == StatusFinished
	if details == nil {
		details = detailsFromMap(t.msg)
	}
	processed := processRecordingDetails(details, t.detailsProcessor)
	if processed == nil {
		processed = details
	}

	start, _ := t.msg.GetInt64("start")
	stop, _ := t.msg.GetInt64("stop")

	var entry Entry
	err := t.catalogue.WithTransaction(ctx, func(ctx context.Context) error {
		entry = t.catalogue.Create(ctx)
		entry.SetResource(resource)
		entry.SetRecordingStatus(status)
		entry.SetRefreshable(refreshable)
		entry.SetRecorder(t.recorderName)
		entry.SetTimeStarted(start)
		entry.SetTimeSortable(start)
		entry.SetTimeFinished(stop)
		entry.SetDuration(stop - start)

		if processed != nil {
			if processed.HasTitle {
				entry.SetTitle(processed.Title)
			}
			if processed.HasResourceTitle {
				entry.SetResourceTitle(processed.ResourceTitle)
			} else if processed.HasTitle {
				entry.SetResourceTitle(processed.Title)
			}
			if processed.HasSeries {
				entry.SetSeries(processed.Series)
			}
			if processed.HasEpisode {
				entry.SetEpisode(processed.Episode)
			}
			if processed.HasDesc {
				entry.SetDescription(processed.Description)
			}
			if processed.HasSummary {
				entry.SetSummary(processed.Summary)
			} else if processed.HasSubtitle {
				entry.SetSummary(processed.Subtitle)
			}
		}

		if channelID, ok := t.msg.GetInt64("channel"); ok {
			name, err := t.epg.GetChannelName(ctx, channelID)
			if err != nil {
				t.logger.Warn("pvr_channel_name_lookup_failed", "channel", channelID, "error", err)
			} else {
				entry.SetChannel(name)
			}
		}

		if err := t.catalogue.ContainerAdd(ctx, entry); err != nil {
			return err
		}
		return t.catalogue.Save(ctx, entry)
	})
	if err != nil {
		return nil, false, err
	}
	return entry, refreshable, nil
}
