// Package builtin contains the row transformers used by the importer.
package builtin

import (
	"strings"

	"taskstats/internal/records"
	"taskstats/internal/schema"
)

// LowerChoices lowercases enumerated fields so "Completed" and "HR" match
// their stored forms. A missing field is set to "" first, which makes it fail
// enum validation with the same message as any other bad value.
type LowerChoices struct {
	Fields []string
}

// DefaultLowerChoices lowercases status and department.
var DefaultLowerChoices = LowerChoices{Fields: []string{schema.ColStatus, schema.ColDepartment}}

// Row normalizes r in place.
func (n LowerChoices) Row(r records.Record) {
	for _, f := range n.Fields {
		r[f] = strings.ToLower(r[f])
	}
}

// Apply normalizes every record in place and returns the same slice.
func (n LowerChoices) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		n.Row(r)
	}
	return in
}
