// Package retriever runs the retrieval pipeline: load watermark, fetch new
// log lines, parse, filter, group, label, persist groups, advance watermark.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/casetrail/casetrail/internal/csvout"
	"github.com/casetrail/casetrail/internal/graylog"
	"github.com/casetrail/casetrail/internal/label"
	"github.com/casetrail/casetrail/internal/model"
	"github.com/casetrail/casetrail/internal/records"
	"github.com/casetrail/casetrail/internal/watermark"
)

// Config wires the pipeline's collaborators. Fetcher and TargetDir are
// required; the rest have working defaults.
type Config struct {
	TargetDir string
	Fields    []string
	Fetcher   model.LogFetcher
	Filter    *records.Filter
	Deriver   *label.Deriver
	Writer    model.GroupWriter
	Sink      model.EventSink // optional event-log store
}

// Retriever executes one run-to-completion retrieval per Run call.
type Retriever struct {
	// mu serializes runs: the pipeline is a single writer over the target
	// directory and the watermark, whether triggered by ticker or API.
	mu sync.Mutex

	targetDir string
	fields    []string
	fetcher   model.LogFetcher
	filter    *records.Filter
	deriver   *label.Deriver
	writer    model.GroupWriter
	sink      model.EventSink
	wm        *watermark.Store
}

// New creates a retriever from the given configuration.
func New(cfg Config) (*Retriever, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("retriever: fetcher is required")
	}
	if cfg.TargetDir == "" {
		return nil, errors.New("retriever: target directory is required")
	}
	fields := cfg.Fields
	if len(fields) == 0 {
		fields = model.DefaultExportedFields
	}
	deriver := cfg.Deriver
	if deriver == nil {
		deriver = label.NewDefaultDeriver()
	}
	writer := cfg.Writer
	if writer == nil {
		writer = csvout.NewWriter(cfg.TargetDir)
	}
	return &Retriever{
		targetDir: cfg.TargetDir,
		fields:    fields,
		fetcher:   cfg.Fetcher,
		filter:    cfg.Filter,
		deriver:   deriver,
		writer:    writer,
		sink:      cfg.Sink,
		wm:        watermark.NewStore(filepath.Join(cfg.TargetDir, watermark.Filename)),
	}, nil
}

// Run performs one retrieval. Concurrent callers are serialized. An empty
// fetch result is a successful no-op. The watermark only advances after every
// group file (and the event-log batch, when a sink is configured) has been
// written, so a failed run is always safe to retry.
func (r *Retriever) Run(ctx context.Context) (model.RunStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats model.RunStats

	if err := os.MkdirAll(r.targetDir, 0755); err != nil {
		return stats, fmt.Errorf("retriever: preparing target directory: %w", err)
	}

	last := r.wm.Load()
	from := graylog.AdvanceTimestamp(last)

	body, err := r.fetcher.Export(ctx, from, r.fields)
	if err != nil {
		return stats, fmt.Errorf("retriever: fetching log entries: %w", err)
	}

	fieldnames, recs, err := records.Parse(body)
	if err != nil {
		return stats, err
	}
	stats.Fetched = len(recs)
	if len(recs) == 0 {
		log.Printf("retriever: no new log entries found")
		return stats, nil
	}

	// The watermark candidate is the timestamp of the chronologically last
	// fetched record, taken before filtering and grouping drop entries: a
	// dropped entry stays dropped on every refetch, so the run may advance
	// past it.
	lastTimestamp := recs[len(recs)-1].Timestamp()

	r.filter.Apply(&recs)

	grouping := records.GroupByCorrelationID(recs)
	stats.Groups = grouping.Len()
	if grouping.Len() == 0 {
		log.Printf("retriever: no entries retained after filtering and grouping")
		return stats, r.advanceWatermark(&stats, lastTimestamp)
	}

	r.deriver.Apply(grouping)

	outFields := model.OrderedFieldnames(fieldnames)
	retained := 0
	err = grouping.Each(func(id string, group []*model.Record) error {
		retained += len(group)
		return r.writer.WriteGroup(id, group, outFields)
	})
	if err != nil {
		return stats, fmt.Errorf("retriever: persisting groups: %w", err)
	}
	stats.Retained = retained
	stats.FilesWritten = grouping.Len()

	if r.sink != nil {
		batch := make([]*model.Record, 0, retained)
		_ = grouping.Each(func(_ string, group []*model.Record) error {
			batch = append(batch, group...)
			return nil
		})
		if err := r.sink.InsertEventBatch(batch); err != nil {
			return stats, fmt.Errorf("retriever: storing event log: %w", err)
		}
		stats.EventsStored = len(batch)
	}

	if err := r.advanceWatermark(&stats, lastTimestamp); err != nil {
		return stats, err
	}

	log.Printf("retriever: stored %d process instances (%d entries), watermark %q",
		grouping.Len(), retained, stats.Watermark)
	return stats, nil
}

func (r *Retriever) advanceWatermark(stats *model.RunStats, lastTimestamp string) error {
	ts, err := graylog.ParseTimestamp(lastTimestamp)
	if err != nil {
		return fmt.Errorf("retriever: last entry has unparseable timestamp %q: %w", lastTimestamp, err)
	}
	if err := r.wm.Store(ts); err != nil {
		return err
	}
	stats.Watermark = graylog.FormatTimestamp(ts)
	return nil
}
