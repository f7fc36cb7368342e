// Package records turns raw log-store export text into sorted, filtered,
// grouped record sets.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casetrail/casetrail/internal/model"
)

// Parse interprets a raw delimited export body as records. The first row is
// the header defining field names; every following row becomes one record.
// Quoted fields may span multiple lines, so the body is fed to the CSV reader
// whole. Records are returned sorted ascending by timestamp with a stable
// sort, so ties keep their fetch order.
func Parse(body string) ([]string, []*model.Record, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil, nil
	}

	reader := csv.NewReader(strings.NewReader(body))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("records: parsing export lines: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	fieldnames := rows[0]
	if len(fieldnames) == 0 {
		return nil, nil, errors.New("records: export header is empty")
	}

	recs := make([]*model.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := model.NewRecord()
		for i, name := range fieldnames {
			if i < len(row) {
				rec.Set(name, row[i])
			} else {
				rec.Set(name, "")
			}
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp() < recs[j].Timestamp()
	})

	return fieldnames, recs, nil
}
