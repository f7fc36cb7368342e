// Package csvout serializes labeled record groups, one CSV file per process
// instance.
package csvout

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/casetrail/casetrail/internal/model"
)

// filenameSanitizer replaces characters that are invalid in file names on at
// least one supported platform. Windows reserves ':' among others.
var filenameSanitizer = strings.NewReplacer(
	":", "_",
	"/", "_",
	"\\", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFilename makes name safe to use as a file name.
func SanitizeFilename(name string) string {
	return filenameSanitizer.Replace(name)
}

// Writer writes one CSV file per record group into a target directory.
// Filenames derive from the group's earliest timestamp and correlation id,
// so rewriting the same group is an idempotent overwrite.
type Writer struct {
	dir string
}

// NewWriter creates a group writer targeting dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// GroupFilename returns the deterministic file name for a group.
func GroupFilename(firstTimestamp, correlationID string) string {
	return SanitizeFilename(fmt.Sprintf("%s_%s.csv", firstTimestamp, correlationID))
}

// WriteGroup writes the group's records under the given column order, header
// row first. The group must be non-empty.
func (w *Writer) WriteGroup(correlationID string, records []*model.Record, fieldnames []string) error {
	if len(records) == 0 {
		return fmt.Errorf("csvout: group %q is empty", correlationID)
	}

	name := GroupFilename(records[0].Timestamp(), correlationID)
	path := filepath.Join(w.dir, name)
	log.Printf("csvout: storing process instance %q in %q", correlationID, path)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvout: creating %q: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(fieldnames); err != nil {
		_ = f.Close()
		return fmt.Errorf("csvout: writing header to %q: %w", path, err)
	}

	row := make([]string, len(fieldnames))
	for _, rec := range records {
		for i, field := range fieldnames {
			row[i] = rec.Get(field)
		}
		if err := cw.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("csvout: writing row to %q: %w", path, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csvout: flushing %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csvout: closing %q: %w", path, err)
	}
	return nil
}
