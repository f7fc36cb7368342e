// Package label derives categorical attributes from record message text by
// scanning ordered signal-word tables.
package label

import (
	"strings"

	"github.com/casetrail/casetrail/internal/model"
)

// Signal binds a categorical label to the literal substring indicating it.
type Signal struct {
	Label string
	Word  string
}

// Table is an ordered signal-word table. Order defines precedence: when one
// message contains several signal words, the entry with the lowest index
// wins. Several entries may map to the same label.
type Table struct {
	signals  []Signal
	fallback string
}

// NewTable creates a table with the given ordered signals and the label
// assigned when nothing matches.
func NewTable(signals []Signal, fallback string) Table {
	return Table{signals: signals, fallback: fallback}
}

// Match scans message against the table and returns the label of the first
// matching entry in table order.
func (t Table) Match(message string) (string, bool) {
	for _, s := range t.signals {
		if strings.Contains(message, s.Word) {
			return s.Label, true
		}
	}
	return "", false
}

// Fallback returns the label used when no signal matches.
func (t Table) Fallback() string { return t.fallback }

// DefaultApproachTable matches the authentication approach vocabulary of the
// consent flow logs.
func DefaultApproachTable() Table {
	return NewTable([]Signal{
		{Label: "redirect", Word: "approach=REDIRECT"},
		{Label: "embedded", Word: "approach=EMBEDDED"},
		{Label: "OAuth", Word: "approach=OAUTH"},
		{Label: "Decoupled", Word: "approach=DECOUPLED"},
	}, model.FallbackLabel)
}

// DefaultConsentTable matches the consent-type vocabulary. Both the enum
// tokens and the prose variants appear in the logs.
func DefaultConsentTable() Table {
	return NewTable([]Signal{
		{Label: "GET_ACCOUNTS", Word: "GET_ACCOUNTS"},
		{Label: "GET_TRANSACTIONS", Word: "GET_TRANSACTIONS"},
		{Label: "GET_ACCOUNTS", Word: "get account list"},
		{Label: "GET_TRANSACTIONS", Word: "get transaction list"},
	}, model.FallbackLabel)
}

// Deriver assigns approach and consent labels to grouped records. Tables are
// injected at construction so tests can substitute vocabularies.
type Deriver struct {
	approach Table
	consent  Table
}

// NewDeriver creates a deriver over the given tables.
func NewDeriver(approach, consent Table) *Deriver {
	return &Deriver{approach: approach, consent: consent}
}

// NewDefaultDeriver creates a deriver over the default vocabularies.
func NewDefaultDeriver() *Deriver {
	return NewDeriver(DefaultApproachTable(), DefaultConsentTable())
}

// Apply derives both labels for every group. The two derivations are
// independent; no state carries across groups.
func (d *Deriver) Apply(grouping *model.Grouping) {
	_ = grouping.Each(func(_ string, recs []*model.Record) error {
		d.applyApproach(recs)
		d.applyConsent(recs)
		return nil
	})
}

// applyApproach assigns one approach label per group. The scan walks records
// in stored order; the first record containing any table word locks the
// group's label, taking that record's first match in table order. The label
// is then written onto every record of the group.
func (d *Deriver) applyApproach(recs []*model.Record) {
	value := d.approach.Fallback()
	for _, rec := range recs {
		if label, ok := d.approach.Match(rec.Message()); ok {
			value = label
			break
		}
	}
	for _, rec := range recs {
		rec.Set(model.FieldApproach, value)
	}
}

// applyConsent assigns a consent label to each record independently.
func (d *Deriver) applyConsent(recs []*model.Record) {
	for _, rec := range recs {
		value := d.consent.Fallback()
		if label, ok := d.consent.Match(rec.Message()); ok {
			value = label
		}
		rec.Set(model.FieldConsent, value)
	}
}
