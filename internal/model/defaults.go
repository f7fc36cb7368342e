package model

import "time"

// Shared defaults used by the CLI binary and tests.
const (
	// FallbackLabel is assigned when no signal word matches.
	FallbackLabel = "not available"

	// DefaultRetrieveInterval is how often server mode runs a retrieval.
	DefaultRetrieveInterval = 5 * time.Minute
)

// DefaultExportedFields is the field list requested from the log store.
// correlationId links lines to a process instance, timestamp orders them,
// message carries the signal words.
var DefaultExportedFields = []string{FieldCorrelationID, FieldTimestamp, FieldMessage}

// DerivedFields are appended by labeling, in output column order.
var DerivedFields = []string{FieldApproach, FieldConsent}

// OrderedFieldnames returns the output column order for the given exported
// fields: original order with message relocated to the last column, then the
// derived fields.
func OrderedFieldnames(exported []string) []string {
	out := make([]string, 0, len(exported)+len(DerivedFields))
	hasMessage := false
	for _, f := range exported {
		if f == FieldMessage {
			hasMessage = true
			continue
		}
		out = append(out, f)
	}
	if hasMessage {
		out = append(out, FieldMessage)
	}
	out = append(out, DerivedFields...)
	return out
}
