package model

import (
	"context"
	"time"
)

// LogFetcher is the log-store export capability: it returns the raw
// delimited export body (header row first) for all entries at or after the
// given instant, or an empty body when nothing matches.
type LogFetcher interface {
	Export(ctx context.Context, from time.Time, fields []string) (string, error)
}

// GroupWriter persists one labeled record group.
type GroupWriter interface {
	WriteGroup(correlationID string, records []*Record, fieldnames []string) error
}

// EventSink ingests one run's labeled records into the event-log store.
type EventSink interface {
	InsertEventBatch(records []*Record) error
}

// EventLogOpts holds optional filters for event-log queries.
type EventLogOpts struct {
	Approach string // empty = all approaches
}

// EventLogReader serves the assembled process-mining event log.
type EventLogReader interface {
	EventLog(opts EventLogOpts) ([]Event, error)
	CaseIDs() ([]string, error)
	TotalEventCount() (int64, error)
}

// RetrievalRunner triggers one retrieval run.
type RetrievalRunner interface {
	Run(ctx context.Context) (RunStats, error)
}
