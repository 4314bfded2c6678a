package pvr

import (
	"context"
	"fmt"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// VFSScheme is the resource-URL scheme the manager uses for recordings it
// catalogues (spec.md §8 scenario S2: "tvheadend-file:///7"). Exported so
// internal/vfs can resolve a streamed DVR id back to the same catalogue key
// without the two packages sharing anything beyond this string.
const VFSScheme = "tvheadend-file"

// RecordingContentType is the container content type the manager lists to
// find locally catalogued recordings during the orphan sweep.
const RecordingContentType = "pvr_recording"

// ResourceURL builds the catalogue key for a DVR id.
func ResourceURL(dvrID int64) string {
	return fmt.Sprintf("%s:///%d", VFSScheme, dvrID)
}

func messageHasDetails(msg *htsmsg.Map) bool {
	return msg.Has("description") || msg.Has("subtitle") || msg.Has("summary")
}

func detailsFromMap(msg *htsmsg.Map) *RecordingDetails {
	d := &RecordingDetails{}
	if v, ok := msg.GetStr("title"); ok {
		d.Title, d.HasTitle = v, true
	}
	if v, ok := msg.GetStr("subtitle"); ok {
		d.Subtitle, d.HasSubtitle = v, true
	}
	if v, ok := msg.GetStr("series"); ok {
		d.Series, d.HasSeries = v, true
	}
	if v, ok := msg.GetInt64("episodeNumber"); ok {
		d.Episode, d.HasEpisode = v, true
	}
	if v, ok := msg.GetStr("description"); ok {
		d.Description, d.HasDesc = v, true
	}
	if v, ok := msg.GetStr("summary"); ok {
		d.Summary, d.HasSummary = v, true
	}
	return d
}

// processRecordingDetails canonicalizes title/resource_title per spec.md
// §4.4: a present subtitle composes "{title} - {subtitle}" and demotes the
// bare title to resource_title; otherwise resource_title mirrors title.
// custom, when non-nil, is consulted first (the
// mp_tvheadend_recording_details_custom_processing hook) and its result
// used verbatim if it returns one.
func processRecordingDetails(details *RecordingDetails, custom DetailsProcessor) *RecordingDetails {
	if details == nil {
		return nil
	}
	if custom != nil {
		if p := custom(details); p != nil {
			return p
		}
	}
	if !details.HasTitle {
		return details
	}
	out := *details
	if out.HasSubtitle {
		out.ResourceTitle, out.HasResourceTitle = out.Title, true
		out.Title = out.Title + " - " + out.Subtitle
	} else {
		out.ResourceTitle, out.HasResourceTitle = out.Title, true
	}
	return &out
}

// fetchDetails resolves EPG details for a dvrEntry message lacking its own
// description/subtitle/summary: get_epg_event_details when eventId is
// present and the recording hasn't finished airing, falling back to the
// get_epg_details window search when channel/start/stop are present.
// Lookup failures are swallowed (logged), matching the original's
// catch-and-continue: missing details are not a task failure.
func (t *refreshTask) fetchDetails(ctx context.Context) *RecordingDetails {
	stop, hasStop := t.msg.GetInt64("stop")
	if eventID, hasEventID := t.msg.GetInt64("eventId"); hasEventID && (!hasStop || stop >= time.Now().Unix()) {
		resp, err := t.epg.GetEPGEventDetails(ctx, eventID)
		if err == nil {
			return detailsFromMap(resp)
		}
		t.logger.Debug("pvr_epg_event_details_miss", "event_id", eventID, "error", err)
	}

	channel, hasChannel := t.msg.GetInt64("channel")
	start, hasStart := t.msg.GetInt64("start")
	if hasChannel && hasStart && hasStop {
		title, _ := t.msg.GetStr("title")
		resp, err := t.epg.GetEPGDetails(ctx, channel, start, stop, title)
		if err == nil {
			return detailsFromMap(resp)
		}
		t.logger.Debug("pvr_epg_details_miss", "channel", channel, "error", err)
	}

	return nil
}
