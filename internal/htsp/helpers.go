package htsp

import (
	"context"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// GetChannel fetches channel metadata by id. Only meaningful when the
// negotiated htspversion supports getChannel (≥14); callers typically reach
// this indirectly via GetChannelName.
func (c *Client) GetChannel(ctx context.Context, channelID int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("channelId", channelID)
	return c.Call(ctx, "getChannel", params)
}

// GetEvent fetches a single EPG event by id (used by GetEPGEventDetails).
func (c *Client) GetEvent(ctx context.Context, eventID int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("eventId", eventID)
	return c.Call(ctx, "getEvent", params)
}

// GetEvents fetches a batch of EPG events for a channel, optionally
// resuming from eventID (the "cursor" for window search) and bounded by
// maxTime (unix seconds). numFollowing caps the batch size.
func (c *Client) GetEvents(ctx context.Context, channelID int64, eventID int64, numFollowing int64, maxTime int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("channelId", channelID)
	params.SetInt64("numFollowing", numFollowing)
	if eventID > 0 {
		params.SetInt64("eventId", eventID)
	}
	if maxTime > 0 {
		params.SetInt64("maxTime", maxTime)
	}
	return c.Call(ctx, "getEvents", params)
}

// EnableAsyncMetadata subscribes the session to the server's initial-sync
// burst of channel/DVR events, terminated by initialSyncCompleted.
func (c *Client) EnableAsyncMetadata(ctx context.Context) error {
	_, err := c.Call(ctx, "enableAsyncMetadata", nil)
	return err
}

// FileOpen opens a server-side file handle for path (e.g. "/dvrfile/{id}"),
// returning the response carrying the server-assigned "id" (handle id).
func (c *Client) FileOpen(ctx context.Context, path string) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetStr("file", path)
	return c.Call(ctx, "fileOpen", params)
}

// FileRead requests up to size bytes from the open handle.
func (c *Client) FileRead(ctx context.Context, handleID int64, size int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("id", handleID)
	params.SetInt64("size", size)
	return c.Call(ctx, "fileRead", params)
}

// FileSeek repositions the open handle (whence is always SEEK_SET per
// spec.md §4.5) and returns the response carrying the new "offset".
func (c *Client) FileSeek(ctx context.Context, handleID int64, offset int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("id", handleID)
	params.SetInt64("offset", offset)
	params.SetStr("whence", "SEEK_SET")
	return c.Call(ctx, "fileSeek", params)
}

// FileStat returns size/mtime for the open handle.
func (c *Client) FileStat(ctx context.Context, handleID int64) (*htsmsg.Map, error) {
	params := htsmsg.NewMap()
	params.SetInt64("id", handleID)
	return c.Call(ctx, "fileStat", params)
}

// FileClose releases the server-side handle.
func (c *Client) FileClose(ctx context.Context, handleID int64) error {
	params := htsmsg.NewMap()
	params.SetInt64("id", handleID)
	_, err := c.Call(ctx, "fileClose", params)
	return err
}
