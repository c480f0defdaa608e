// Package records holds the raw, untyped row shape that flows from the CSV
// parser into the transformers.
package records

import (
	"strconv"

	"taskstats/internal/schema"
)

// Record is one inbound row keyed by header name. Values are the raw strings
// read from the source; a key that is absent means the column was missing.
type Record map[string]string

// FromTask renders a stored task back into raw form, used when a partial
// update is merged over an existing record before re-validation.
func FromTask(t schema.TaskRecord) Record {
	return Record{
		schema.ColEmployeeID:   strconv.FormatInt(t.EmployeeID, 10),
		schema.ColEmployeeName: t.EmployeeName,
		schema.ColDepartment:   t.Department,
		schema.ColTaskID:       strconv.FormatInt(t.TaskID, 10),
		schema.ColTaskName:     t.TaskName,
		schema.ColHoursSpent:   strconv.FormatInt(t.HoursSpent, 10),
		schema.ColDeadline:     t.Deadline.String(),
		schema.ColStatus:       t.Status,
	}
}
