// Package eventlog maintains the queryable process-mining event log backed
// by DuckDB. Each retrieval run ingests its labeled records; downstream
// graph construction reads the assembled log with mining column names.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/casetrail/casetrail/internal/eventlog/migrate"
	"github.com/casetrail/casetrail/internal/graylog"
	"github.com/casetrail/casetrail/internal/model"

	_ "github.com/duckdb/duckdb-go/v2"
)

const defaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection holding the event log.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	QueryTimeout time.Duration
}

// NewStore opens or creates the event-log database. An empty dbPath opens an
// in-memory database.
func NewStore(dbPath string) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("eventlog: preparing database directory: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening database: %w", err)
	}
	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: migrating schema: %w", err)
	}

	return &Store{db: db, QueryTimeout: defaultQueryTimeout}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEventBatch ingests one run's labeled records. Existing events of the
// affected cases are replaced in the same transaction, so re-running an
// unadvanced watermark range is an idempotent overwrite, matching the
// per-group CSV files.
func (s *Store) InsertEventBatch(recs []*model.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: begin insert: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	seen := make(map[string]bool)
	del, err := tx.PrepareContext(ctx, "DELETE FROM events WHERE case_id = ?")
	if err != nil {
		return fmt.Errorf("eventlog: prepare delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx,
		"INSERT INTO events (case_id, event_time, activity, approach, consent) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("eventlog: prepare insert: %w", err)
	}
	defer ins.Close()

	for _, rec := range recs {
		caseID := rec.CorrelationID()
		if !seen[caseID] {
			if _, err := del.ExecContext(ctx, caseID); err != nil {
				return fmt.Errorf("eventlog: clearing case %q: %w", caseID, err)
			}
			seen[caseID] = true
		}

		ts, err := graylog.ParseTimestamp(rec.Timestamp())
		if err != nil {
			return fmt.Errorf("eventlog: event of case %q has unparseable timestamp %q: %w",
				caseID, rec.Timestamp(), err)
		}
		if _, err := ins.ExecContext(ctx,
			caseID, ts, rec.Message(),
			rec.Get(model.FieldApproach), rec.Get(model.FieldConsent),
		); err != nil {
			return fmt.Errorf("eventlog: inserting event of case %q: %w", caseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("eventlog: commit insert: %w", err)
	}
	committed = true
	return nil
}

// EventLog returns the assembled event log ordered by case and time, with
// columns renamed to the mining schema. When opts.Approach is set, only
// cases carrying that approach are returned.
func (s *Store) EventLog(opts model.EventLogOpts) ([]model.Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	query := `SELECT case_id, event_time, activity, approach, consent
		FROM events`
	args := []any{}
	if opts.Approach != "" {
		query += " WHERE approach = ?"
		args = append(args, opts.Approach)
	}
	query += " ORDER BY case_id, event_time"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: querying events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var ts time.Time
		if err := rows.Scan(&ev.CaseID, &ts, &ev.Activity, &ev.Approach, &ev.Consent); err != nil {
			return nil, fmt.Errorf("eventlog: scanning event: %w", err)
		}
		ev.Time = graylog.FormatTimestamp(ts)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: iterating events: %w", err)
	}
	return events, nil
}

// CaseIDs returns the distinct case ids in first-event order.
func (s *Store) CaseIDs() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT case_id FROM events GROUP BY case_id ORDER BY MIN(event_time), case_id")
	if err != nil {
		return nil, fmt.Errorf("eventlog: querying cases: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("eventlog: scanning case id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: iterating cases: %w", err)
	}
	return ids, nil
}

// TotalEventCount returns the number of stored events.
func (s *Store) TotalEventCount() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("eventlog: counting events: %w", err)
	}
	return n, nil
}
