package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/casetrail/casetrail/internal/eventlog"
	"github.com/casetrail/casetrail/internal/graylog"
	"github.com/casetrail/casetrail/internal/model"
	"github.com/casetrail/casetrail/internal/records"
	"github.com/casetrail/casetrail/internal/retriever"
	"github.com/casetrail/casetrail/internal/watermark"
)

// fakeGraylog is an HTTP stand-in for the log store's CSV export endpoint.
// It serves rows at or after the requested "from" instant.
type fakeGraylog struct {
	mu   sync.Mutex
	rows []string // "<correlationId>,<timestamp>,<message>"
}

func (f *fakeGraylog) add(id, ts, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, fmt.Sprintf("%s,%s,%s", id, ts, msg))
}

func (f *fakeGraylog) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		from := r.URL.Query().Get("from")

		f.mu.Lock()
		defer f.mu.Unlock()

		var matched []string
		for _, row := range f.rows {
			parts := strings.SplitN(row, ",", 3)
			if len(parts) == 3 && parts[1] >= from {
				matched = append(matched, row)
			}
		}
		if len(matched) == 0 {
			return
		}
		fmt.Fprint(w, "correlationId,timestamp,message\r\n")
		for _, row := range matched {
			fmt.Fprint(w, row+"\r\n")
		}
	})
}

type pipeline struct {
	upstream *fakeGraylog
	ret      *retriever.Retriever
	store    *eventlog.Store
	dir      string
}

func startPipeline(t *testing.T, filterCfg records.FilterConfig) *pipeline {
	t.Helper()

	upstream := &fakeGraylog{}
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	client, err := graylog.NewClient(srv.URL, "e2e-token")
	if err != nil {
		t.Fatalf("graylog.NewClient: %v", err)
	}

	filter, err := records.NewFilter(filterCfg)
	if err != nil {
		t.Fatalf("records.NewFilter: %v", err)
	}

	store, err := eventlog.NewStore("")
	if err != nil {
		t.Fatalf("eventlog.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	dir := t.TempDir()
	ret, err := retriever.New(retriever.Config{
		TargetDir: dir,
		Fetcher:   client,
		Filter:    filter,
		Sink:      store,
	})
	if err != nil {
		t.Fatalf("retriever.New: %v", err)
	}

	return &pipeline{upstream: upstream, ret: ret, store: store, dir: dir}
}

func (p *pipeline) csvFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (p *pipeline) watermark(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(p.dir, watermark.Filename))
	if err != nil {
		t.Fatalf("reading watermark: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestPipelineEndToEnd(t *testing.T) {
	p := startPipeline(t, records.FilterConfig{})

	p.upstream.add("A", "2021-03-29T12:00:01.000Z", "session started")
	p.upstream.add("A", "2021-03-29T12:00:02.000Z", "approach=EMBEDDED selected")
	p.upstream.add("B", "2021-03-29T12:00:03.000Z", "requested GET_ACCOUNTS")
	p.upstream.add("", "2021-03-29T12:00:04.000Z", "line without correlation id")

	stats, err := p.ret.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Fetched != 4 || stats.Retained != 3 || stats.Groups != 2 {
		t.Errorf("stats = %+v", stats)
	}

	files := p.csvFiles(t)
	want := []string{
		"2021-03-29T12_00_01.000Z_A.csv",
		"2021-03-29T12_00_03.000Z_B.csv",
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files = %v, want %v", files, want)
	}

	data, err := os.ReadFile(filepath.Join(p.dir, files[0]))
	if err != nil {
		t.Fatalf("reading group A: %v", err)
	}
	wantA := "correlationId,timestamp,message,approach,consent\n" +
		"A,2021-03-29T12:00:01.000Z,session started,embedded,not available\n" +
		"A,2021-03-29T12:00:02.000Z,approach=EMBEDDED selected,embedded,not available\n"
	if string(data) != wantA {
		t.Errorf("group A content:\n%s\nwant:\n%s", data, wantA)
	}

	// The blank-id entry at 12:00:04 is dropped for good, so the watermark
	// moves past it rather than refetching it on every run.
	if got := p.watermark(t); got != "2021-03-29T12:00:04.000Z" {
		t.Errorf("watermark = %q", got)
	}

	events, err := p.store.EventLog(model.EventLogOpts{})
	if err != nil {
		t.Fatalf("EventLog: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	embedded, err := p.store.EventLog(model.EventLogOpts{Approach: "embedded"})
	if err != nil {
		t.Fatalf("EventLog(embedded): %v", err)
	}
	if len(embedded) != 2 {
		t.Errorf("embedded events = %d, want 2", len(embedded))
	}
	for _, ev := range embedded {
		if ev.CaseID != "A" {
			t.Errorf("embedded event case = %q", ev.CaseID)
		}
	}
}

func TestPipelineSecondRunIsNoOpWithoutNewData(t *testing.T) {
	p := startPipeline(t, records.FilterConfig{})
	p.upstream.add("A", "2021-03-29T12:00:01.000Z", "only entry")

	if _, err := p.ret.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	filesBefore := p.csvFiles(t)
	wmBefore := p.watermark(t)

	stats, err := p.ret.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Fetched != 0 || stats.FilesWritten != 0 {
		t.Errorf("second run stats = %+v, want no-op", stats)
	}
	if got := p.csvFiles(t); len(got) != len(filesBefore) {
		t.Errorf("files changed: %v -> %v", filesBefore, got)
	}
	if got := p.watermark(t); got != wmBefore {
		t.Errorf("watermark changed: %q -> %q", wmBefore, got)
	}

	count, err := p.store.TotalEventCount()
	if err != nil {
		t.Fatalf("TotalEventCount: %v", err)
	}
	if count != 1 {
		t.Errorf("event count = %d, want 1", count)
	}
}

func TestPipelineIncrementalRuns(t *testing.T) {
	p := startPipeline(t, records.FilterConfig{})
	p.upstream.add("A", "2021-03-29T12:00:01.000Z", "first batch")

	if _, err := p.ret.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	p.upstream.add("B", "2021-03-29T12:00:10.000Z", "second batch")
	stats, err := p.ret.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Fetched != 1 || stats.Groups != 1 {
		t.Errorf("second run stats = %+v, want only the new entry", stats)
	}
	if got := p.watermark(t); got != "2021-03-29T12:00:10.000Z" {
		t.Errorf("watermark = %q", got)
	}
	if files := p.csvFiles(t); len(files) != 2 {
		t.Errorf("files = %v, want 2", files)
	}
}

func TestPipelineFilterDropsNoiseBeforeGrouping(t *testing.T) {
	p := startPipeline(t, records.FilterConfig{
		Rules: []records.Rule{{Pattern: "heartbeat", Exclude: true}},
	})
	p.upstream.add("A", "2021-03-29T12:00:01.000Z", "heartbeat ok")
	p.upstream.add("A", "2021-03-29T12:00:02.000Z", "real work")

	stats, err := p.ret.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Retained != 1 || stats.Groups != 1 {
		t.Errorf("stats = %+v", stats)
	}

	files := p.csvFiles(t)
	if len(files) != 1 || files[0] != "2021-03-29T12_00_02.000Z_A.csv" {
		t.Errorf("files = %v (filtered entry must not define the group's first timestamp)", files)
	}
}
