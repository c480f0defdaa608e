package builtin

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"taskstats/internal/records"
	"taskstats/internal/schema"
)

// Messages returned per failing field. They are part of the API surface:
// clients match on them.
const (
	MsgRequired    = "This field is required."
	MsgBlank       = "This field may not be blank."
	MsgInvalidInt  = "A valid integer is required."
	MsgInvalidDate = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
)

// FieldErrors maps a field name to the reasons it failed validation.
type FieldErrors map[string][]string

// Add appends msg to field's reasons.
func (fe FieldErrors) Add(field, msg string) { fe[field] = append(fe[field], msg) }

// Error renders the errors in field order so messages are stable.
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(fe[k], " ")))
	}
	return strings.Join(parts, "; ")
}

// trailingZeros strips a ".0", ".00" suffix so "5.0" reads as 5.
var trailingZeros = regexp.MustCompile(`\.0*\s*$`)

// Validate checks raw rows against a schema.Contract and builds typed
// TaskRecords. It never mutates its input.
type Validate struct {
	Contract schema.Contract
}

// NewValidate returns a validator for schema.TaskContract.
func NewValidate() Validate {
	return Validate{Contract: schema.TaskContract}
}

// Record validates r. On success it returns the typed record and nil; on
// failure it returns every failing field, not just the first.
func (v Validate) Record(r records.Record) (schema.TaskRecord, FieldErrors) {
	fe := FieldErrors{}
	vals := make(map[string]any, len(v.Contract.Fields))

	for _, f := range v.Contract.Fields {
		raw, present := r[f.Name]
		if !present {
			if f.Default != "" {
				raw, present = f.Default, true
			} else if f.Required {
				fe.Add(f.Name, MsgRequired)
				continue
			} else {
				continue
			}
		}
		val, msgs := checkField(f, raw)
		if len(msgs) > 0 {
			fe[f.Name] = msgs
			continue
		}
		vals[f.Name] = val
	}
	if len(fe) > 0 {
		return schema.TaskRecord{}, fe
	}

	rec := schema.TaskRecord{}
	rec.EmployeeID, _ = vals[schema.ColEmployeeID].(int64)
	rec.EmployeeName, _ = vals[schema.ColEmployeeName].(string)
	rec.Department, _ = vals[schema.ColDepartment].(string)
	rec.TaskID, _ = vals[schema.ColTaskID].(int64)
	rec.TaskName, _ = vals[schema.ColTaskName].(string)
	rec.HoursSpent, _ = vals[schema.ColHoursSpent].(int64)
	rec.Deadline, _ = vals[schema.ColDeadline].(schema.Date)
	rec.Status, _ = vals[schema.ColStatus].(string)
	return rec, nil
}

// checkField coerces raw according to f and returns the typed value or the
// list of reasons it was refused.
func checkField(f schema.Field, raw string) (any, []string) {
	switch f.Type {
	case "int":
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, []string{MsgInvalidInt}
		}
		n, err := strconv.ParseInt(trailingZeros.ReplaceAllString(s, ""), 10, 64)
		if err != nil {
			return nil, []string{MsgInvalidInt}
		}
		if f.Min != nil && n < *f.Min {
			return nil, []string{fmt.Sprintf("Ensure this value is greater than or equal to %d.", *f.Min)}
		}
		return n, nil

	case "text":
		s := strings.TrimSpace(raw)
		if s == "" {
			return nil, []string{MsgBlank}
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return nil, []string{fmt.Sprintf("Ensure this field has no more than %d characters.", f.MaxLength)}
		}
		return s, nil

	case "choice":
		for _, e := range f.Enum {
			if raw == e {
				return raw, nil
			}
		}
		return nil, []string{fmt.Sprintf("%q is not a valid choice.", raw)}

	case "date":
		d, err := schema.ParseDate(strings.TrimSpace(raw))
		if err != nil {
			return nil, []string{MsgInvalidDate}
		}
		return d, nil

	default:
		return raw, nil
	}
}
