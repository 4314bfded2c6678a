package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"calls_ok", snap.CallsOK,
					"calls_error", snap.CallsError,
					"calls_timeout", snap.CallsTimeout,
					"reconnects", snap.Reconnects,
					"events", snap.Events,
					"events_dropped", snap.EventsDrop,
					"pvr_refresh", snap.Refresh,
					"pvr_delete", snap.Delete,
					"pvr_orphans", snap.Orphans,
					"streamer_bytes_read", snap.BytesRead,
					"streamer_seeks", snap.Seeks,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
