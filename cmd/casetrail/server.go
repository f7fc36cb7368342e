package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casetrail/casetrail/internal/eventlog"
	"github.com/casetrail/casetrail/internal/graylog"
	"github.com/casetrail/casetrail/internal/httpserver"
	"github.com/casetrail/casetrail/internal/label"
	"github.com/casetrail/casetrail/internal/model"
	"github.com/casetrail/casetrail/internal/records"
	"github.com/casetrail/casetrail/internal/retriever"
	"golang.org/x/sync/errgroup"
)

// buildPipeline wires the retriever and the optional event-log store from
// configuration. The caller owns closing the returned store (may be nil).
func buildPipeline(cfg appConfig) (*retriever.Retriever, *eventlog.Store, error) {
	client, err := graylog.NewClient(cfg.GraylogURL, cfg.GraylogAPIToken)
	if err != nil {
		return nil, nil, err
	}

	filterCfg, err := records.LoadFilterConfig(cfg.FilterConfigPath)
	if err != nil {
		return nil, nil, err
	}
	filter, err := records.NewFilter(filterCfg)
	if err != nil {
		return nil, nil, err
	}

	var store *eventlog.Store
	var sink model.EventSink
	if cfg.EventLogEnabled {
		store, err = eventlog.NewStore(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		sink = store
	}

	ret, err := retriever.New(retriever.Config{
		TargetDir: cfg.TargetDir,
		Fields:    model.DefaultExportedFields,
		Fetcher:   client,
		Filter:    filter,
		Deriver:   label.NewDefaultDeriver(),
		Sink:      sink,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return ret, store, nil
}

// runOnce performs a single retrieval run and exits.
func runOnce(cfg appConfig) error {
	ret, store, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	stats, err := ret.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("run complete: %d entries fetched, %d retained, %d process instances",
		stats.Fetched, stats.Retained, stats.Groups)
	return nil
}

// runServer runs periodic retrievals plus the HTTP API until interrupted.
func runServer(cfg appConfig) error {
	ret, store, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if cfg.APIEnabled {
		if store == nil {
			return fmt.Errorf("api requires eventlog-enabled")
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, store, ret)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
		log.Printf("API listening on %s", cfg.APIAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.RetrieveInterval)
		defer ticker.Stop()

		runRetrieval(ctx, cfg, ret)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runRetrieval(ctx, cfg, ret)
			}
		}
	})

	return g.Wait()
}

// runRetrieval executes one run; failures are logged and retried on the next
// tick since an unadvanced watermark makes retries safe.
func runRetrieval(ctx context.Context, cfg appConfig, ret *retriever.Retriever) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	if _, err := ret.Run(runCtx); err != nil {
		log.Printf("retrieval failed (will retry): %v", err)
	}
}
