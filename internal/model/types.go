package model

// Well-known record field names. Export field names follow the log store's
// schema; the derived fields are appended by the labeling stage.
const (
	FieldCorrelationID = "correlationId"
	FieldTimestamp     = "timestamp"
	FieldMessage       = "message"
	FieldApproach      = "approach"
	FieldConsent       = "consent"
)

// Record represents a single exported log entry as a field name to text
// value mapping. Field order is carried separately (see OrderedFieldnames)
// so records stay cheap to copy and mutate.
type Record struct {
	Fields map[string]string
}

// NewRecord creates an empty record.
func NewRecord() *Record {
	return &Record{Fields: make(map[string]string)}
}

// Get returns the value of the named field, or "" when absent.
func (r *Record) Get(field string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[field]
}

// Set assigns the value of the named field.
func (r *Record) Set(field, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[field] = value
}

// CorrelationID returns the record's correlation id, or "" when missing.
func (r *Record) CorrelationID() string { return r.Get(FieldCorrelationID) }

// Timestamp returns the record's timestamp text. Timestamps are kept as
// text because the export format is lexically sortable.
func (r *Record) Timestamp() string { return r.Get(FieldTimestamp) }

// Message returns the record's free-text message.
func (r *Record) Message() string { return r.Get(FieldMessage) }

// Grouping is an insertion-ordered association of correlation id to the
// records sharing it. Re-adding a known id appends to its group; iteration
// follows first-seen order.
type Grouping struct {
	ids    []string
	groups map[string][]*Record
}

// NewGrouping creates an empty grouping.
func NewGrouping() *Grouping {
	return &Grouping{groups: make(map[string][]*Record)}
}

// Add appends a record to the group for the given correlation id, creating
// the group on first use.
func (g *Grouping) Add(correlationID string, rec *Record) {
	if _, ok := g.groups[correlationID]; !ok {
		g.ids = append(g.ids, correlationID)
	}
	g.groups[correlationID] = append(g.groups[correlationID], rec)
}

// CorrelationIDs returns the group keys in insertion order.
func (g *Grouping) CorrelationIDs() []string {
	ids := make([]string, len(g.ids))
	copy(ids, g.ids)
	return ids
}

// Records returns the records of one group in stored order, or nil for an
// unknown id.
func (g *Grouping) Records(correlationID string) []*Record {
	return g.groups[correlationID]
}

// Len returns the number of groups.
func (g *Grouping) Len() int { return len(g.ids) }

// Each calls fn once per group in insertion order and stops at the first
// error.
func (g *Grouping) Each(fn func(correlationID string, records []*Record) error) error {
	for _, id := range g.ids {
		if err := fn(id, g.groups[id]); err != nil {
			return err
		}
	}
	return nil
}

// Event is one row of the assembled process-mining event log. Column names
// follow the downstream mining schema.
type Event struct {
	CaseID   string `json:"case:concept:name"`
	Time     string `json:"time:timestamp"`
	Activity string `json:"concept:name"`
	Approach string `json:"case:approach"`
	Consent  string `json:"consent"`
}

// RunStats summarizes one retrieval run.
type RunStats struct {
	Fetched      int    `json:"fetched"`
	Retained     int    `json:"retained"`
	Groups       int    `json:"groups"`
	Watermark    string `json:"watermark,omitempty"`
	FilesWritten int    `json:"files_written"`
	EventsStored int    `json:"events_stored"`
}
