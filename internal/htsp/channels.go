package htsp

import (
	"context"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// ensureChannelCacheSubscription is a no-op hook point: onChannelCacheEvent
// is called unconditionally from dispatch, in the reader goroutine itself
// and before fan-out, so the cache is always current by the time any
// subscriber sees the same event. It exists so session establishment has an
// explicit place to note that caching is active when channel_get_supported
// is false (Invariant 6), without a separate bus subscription to manage.
func (c *Client) ensureChannelCacheSubscription() {}

func (c *Client) onChannelCacheEvent(method string, msg *htsmsg.Map) {
	c.mu.Lock()
	supported := c.channelGetSupported
	c.mu.Unlock()
	if supported {
		return
	}

	switch method {
	case "channelAdd", "channelUpdate":
		id, hasID := msg.GetInt64("channelId")
		name, hasName := msg.GetStr("channelName")
		if !hasID || !hasName {
			return
		}
		c.cacheMu.Lock()
		c.channelCache[id] = name
		c.cacheMu.Unlock()
	case "channelDelete":
		id, hasID := msg.GetInt64("channelId")
		if !hasID {
			return
		}
		c.cacheMu.Lock()
		delete(c.channelCache, id)
		c.cacheMu.Unlock()
	}
}

// GetChannelName resolves a channel id to a display name: via getChannel
// when channel_get_supported, otherwise via the locally maintained cache
// (Invariant 6).
func (c *Client) GetChannelName(ctx context.Context, channelID int64) (string, error) {
	c.mu.Lock()
	supported := c.channelGetSupported
	c.mu.Unlock()

	if !supported {
		c.cacheMu.RLock()
		name, ok := c.channelCache[channelID]
		c.cacheMu.RUnlock()
		if ok {
			return name, nil
		}
		return "", newError(KindNotFound, "get_channel_name", ErrNoMatch)
	}

	resp, err := c.GetChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	name, _ := resp.GetStr("channelName")
	return name, nil
}
