package records

import (
	"log"

	"github.com/casetrail/casetrail/internal/model"
)

// GroupByCorrelationID partitions timestamp-sorted records into groups keyed
// by correlation id. Records without a correlation id are dropped with an
// info log.
func GroupByCorrelationID(recs []*model.Record) *model.Grouping {
	grouping := model.NewGrouping()
	for _, rec := range recs {
		id := rec.CorrelationID()
		if id == "" {
			log.Printf("records: omitting entry with missing correlationId (timestamp %q)", rec.Timestamp())
			continue
		}
		grouping.Add(id, rec)
	}
	return grouping
}
