package htsp

import (
	"context"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// epgWindowThreshold is the ±5-minute slack spec.md's window search uses
// around the requested [start, stop) interval.
const epgWindowThreshold = 5 * 60

// GetEPGEventDetails is a one-shot lookup by event id; a response lacking
// "eventId" (the server's not-found shape) is translated into ErrNoMatch.
func (c *Client) GetEPGEventDetails(ctx context.Context, eventID int64) (*htsmsg.Map, error) {
	resp, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !resp.Has("eventId") {
		return nil, newError(KindNotFound, "get_epg_event_details", ErrNoMatch)
	}
	return resp, nil
}

// GetEPGDetails performs the window search described in spec.md §4.3:
// repeatedly fetch batches via getEvents, skip batches that entirely
// precede [start-threshold, stop+threshold), then scan for the first event
// matching start > start-threshold, stop < stop+threshold, and (title
// unset or equal). Terminates with ErrNoMatch when a batch fails to
// advance past its predecessor's cursor.
func (c *Client) GetEPGDetails(ctx context.Context, channelID, start, stop int64, title string) (*htsmsg.Map, error) {
	startMin := start - epgWindowThreshold
	endMax := stop + epgWindowThreshold
	maxTime := stop + epgWindowThreshold

	var cursor int64
	for {
		resp, err := c.GetEvents(ctx, channelID, cursor, 10, maxTime)
		if err != nil {
			return nil, err
		}
		list, ok := resp.GetList("events")
		if !ok || list.Len() == 0 {
			return nil, newError(KindNotFound, "get_epg_details", ErrNoMatch)
		}
		items := list.Items()

		first := items[0].Map
		firstStop, _ := first.GetInt64("stop")
		if first != nil && firstStop <= startMin {
			last := items[len(items)-1].Map
			lastStop, _ := last.GetInt64("stop")
			nextID, hasNext := last.GetInt64("nextEventId")
			if lastStop <= startMin && hasNext && nextID != cursor {
				cursor = nextID
				continue
			}
		}

		for _, v := range items {
			ev := v.Map
			if ev == nil {
				continue
			}
			evStart, _ := ev.GetInt64("start")
			evStop, _ := ev.GetInt64("stop")
			if evStart <= startMin || evStop >= endMax {
				continue
			}
			if title == "" {
				return ev, nil
			}
			if evTitle, _ := ev.GetStr("title"); evTitle == title {
				return ev, nil
			}
		}

		last := items[len(items)-1].Map
		nextID, hasNext := last.GetInt64("nextEventId")
		if !hasNext || nextID == cursor {
			return nil, newError(KindNotFound, "get_epg_details", ErrNoMatch)
		}
		cursor = nextID
	}
}
