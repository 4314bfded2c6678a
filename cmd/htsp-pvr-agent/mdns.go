package main

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
)

// htspServiceType is Tvheadend's standard HTSP mDNS/Avahi service type.
const htspServiceType = "_htsp._tcp"

// discoverMDNS browses for an _htsp._tcp responder and returns its
// host:port. When name is non-empty, only a responder whose instance name
// matches it is accepted; others are skipped.
// Repurposes the teacher's zeroconf dependency from advertising (Register)
// to discovery (Browse) — a client-side use of the same library.
func discoverMDNS(ctx context.Context, name string, timeout time.Duration) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	found := make(chan *zeroconf.ServiceEntry, 1)
	go func() {
		for entry := range entries {
			if name != "" && entry.Instance != name {
				continue
			}
			select {
			case found <- entry:
			default:
			}
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := resolver.Browse(browseCtx, htspServiceType, "local.", entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	select {
	case entry := <-found:
		host := entry.HostName
		if len(entry.AddrIPv4) > 0 {
			host = entry.AddrIPv4[0].String()
		}
		return fmt.Sprintf("%s:%d", host, entry.Port), nil
	case <-browseCtx.Done():
		return "", fmt.Errorf("mdns discovery: no %s responder within %s", htspServiceType, timeout)
	}
}
