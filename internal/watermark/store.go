// Package watermark persists the timestamp of the last processed log entry
// so repeated runs retrieve incrementally.
package watermark

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/casetrail/casetrail/internal/graylog"
)

// Filename is the watermark file kept inside the target directory.
const Filename = "last_included_timestamp"

const fileMode = 0644

// Store reads and writes the single-line watermark file at path.
type Store struct {
	path string
}

// NewStore creates a store for the watermark file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the watermark file location.
func (s *Store) Path() string { return s.path }

// Load returns the persisted watermark. A missing file or invalid content
// falls back to the zero epoch so a fresh or damaged target directory
// triggers a full retrieval instead of an error.
func (s *Store) Load() time.Time {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("watermark: no state at %q, starting from epoch", s.path)
		} else {
			log.Printf("watermark: reading %q: %v, starting from epoch", s.path, err)
		}
		return time.Unix(0, 0).UTC()
	}

	text := strings.TrimSpace(string(data))
	ts, err := graylog.ParseTimestamp(text)
	if err != nil {
		log.Printf("watermark: invalid timestamp %q in %q, starting from epoch", text, s.path)
		return time.Unix(0, 0).UTC()
	}
	log.Printf("watermark: last included timestamp is %q", text)
	return ts
}

// Store persists the watermark. The value is written to a sidecar file,
// synced, and renamed over the previous one so a crash mid-write never
// truncates a valid watermark.
func (s *Store) Store(ts time.Time) error {
	tmp := s.path + ".tmp"
	payload := []byte(graylog.FormatTimestamp(ts) + "\n")
	if err := os.WriteFile(tmp, payload, fileMode); err != nil {
		return fmt.Errorf("watermark: write tmp: %w", err)
	}

	f, err := os.OpenFile(tmp, os.O_RDWR, fileMode)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("watermark: open tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("watermark: sync tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("watermark: close tmp: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("watermark: rename: %w", err)
	}
	return nil
}
