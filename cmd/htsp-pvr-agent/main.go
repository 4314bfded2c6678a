package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/config"
	"github.com/htspvr/htsp-pvr-sync/internal/htsp"
	"github.com/htspvr/htsp-pvr-sync/internal/metrics"
	"github.com/htspvr/htsp-pvr-sync/internal/pvr"
)

func main() {
	cfg, showVersion := config.ParseFlags()
	if showVersion {
		fmt.Printf("htsp-pvr-agent %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.LogFormat, cfg.LogLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.LogMetricsEvery, l, &wg)

	addr := cfg.ListenerAddr
	if cfg.MdnsEnable {
		discovered, err := discoverMDNS(ctx, cfg.MdnsName, 5*time.Second)
		if err != nil {
			l.Warn("mdns_discovery_failed", "error", err, "falling_back_to", addr)
		} else {
			addr = discovered
			l.Info("mdns_discovered", "addr", addr)
		}
	}
	if addr == "" {
		addr = "localhost:9982"
	}

	client := htsp.New(
		htsp.WithAddr(addr),
		htsp.WithCredentials(cfg.User, cfg.Password),
		htsp.WithSocketTimeout(cfg.SocketTimeout),
		htsp.WithLogger(l),
	)

	catalogue := newMemCatalogue()
	taskQueue := newMemTaskQueue(l)
	deleter := memDeleter{catalogue: catalogue}

	manager := pvr.NewManager(catalogue, taskQueue, client,
		pvr.WithDeleter(deleter),
		pvr.WithLogger(l),
	)
	manager.Start(client.Events())
	defer manager.Stop()

	if err := client.Start(ctx); err != nil {
		l.Error("htsp_start_failed", "error", err, "addr", addr)
		cancel()
		os.Exit(1)
	}
	if err := client.EnableAsyncMetadata(ctx); err != nil {
		l.Warn("enable_async_metadata_failed", "error", err)
	}
	l.Info("htsp_session_established", "addr", addr)

	metrics.SetReadinessFunc(func() bool {
		return client.IsActive() && ctx.Err() == nil
	})
	if cfg.MetricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.MetricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	client.Stop()
	wg.Wait()
}
