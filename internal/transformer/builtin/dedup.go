package builtin

import (
	"fmt"

	"taskstats/internal/schema"
)

// DeDup rejects records that repeat a uniqueness key already seen in the
// same batch. Three keys are tracked: employee_id, employee_name, and the
// (employee_id, task_id) assignment. The first occurrence always wins; a
// later record is rejected even when the rest of its payload differs.
//
// Only the batch is consulted. Collisions with rows persisted by earlier
// imports are left to the storage layer's unique constraints.
//
// A DeDup is single-use and not safe for concurrent use.
type DeDup struct {
	ids   map[int64]struct{}
	names map[string]struct{}
	tasks map[taskKey]struct{}
}

type taskKey struct {
	employeeID int64
	taskID     int64
}

// NewDeDup returns an empty DeDup.
func NewDeDup() *DeDup {
	return &DeDup{
		ids:   make(map[int64]struct{}),
		names: make(map[string]struct{}),
		tasks: make(map[taskKey]struct{}),
	}
}

// Check returns every duplicate reason for rec. When there are none, rec's
// keys are registered and Check returns nil. A rejected record registers
// nothing.
func (d *DeDup) Check(rec schema.TaskRecord) []string {
	var reasons []string
	tk := taskKey{rec.EmployeeID, rec.TaskID}

	if _, ok := d.ids[rec.EmployeeID]; ok {
		reasons = append(reasons, fmt.Sprintf("Duplicate employee_id %d", rec.EmployeeID))
	}
	if _, ok := d.names[rec.EmployeeName]; ok {
		reasons = append(reasons, fmt.Sprintf("Duplicate employee_name %s", rec.EmployeeName))
	}
	if _, ok := d.tasks[tk]; ok {
		reasons = append(reasons, fmt.Sprintf("Duplicate task_id for employee %d", rec.EmployeeID))
	}
	if len(reasons) > 0 {
		return reasons
	}

	d.ids[rec.EmployeeID] = struct{}{}
	d.names[rec.EmployeeName] = struct{}{}
	d.tasks[tk] = struct{}{}
	return nil
}

// Duplicate identifies a rejected record by its position in the input.
type Duplicate struct {
	Index   int
	Reasons []string
}

// Partition splits in into the first occurrence of every key (order kept)
// and the duplicates that followed.
func Partition(in []schema.TaskRecord) ([]schema.TaskRecord, []Duplicate) {
	d := NewDeDup()
	valid := make([]schema.TaskRecord, 0, len(in))
	var dups []Duplicate
	for i, rec := range in {
		if reasons := d.Check(rec); reasons != nil {
			dups = append(dups, Duplicate{Index: i, Reasons: reasons})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, dups
}
