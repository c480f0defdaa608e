// Package analytics computes the read-only task reports. Every report is a
// fold over the full record set; ordering is deterministic so JSON output is
// stable across storage backends.
package analytics

import (
	"sort"

	"taskstats/internal/schema"
)

// DefaultWorkloadLimit is the number of employees Workload returns when the
// caller does not ask for a specific count.
const DefaultWorkloadLimit = 3

// DepartmentHours is one row of the department contribution report.
type DepartmentHours struct {
	Department string `json:"department"`
	TotalHours int64  `json:"total_hours"`
}

// EmployeeWorkload is one row of the workload report.
type EmployeeWorkload struct {
	EmployeeName string `json:"employee_name"`
	TotalHours   int64  `json:"total_hours"`
	PendingTasks int64  `json:"pending_tasks"`
}

// DepartmentCompletion is one row of the completion report.
type DepartmentCompletion struct {
	Department           string  `json:"department"`
	TotalTasks           int64   `json:"total_tasks"`
	CompletedTasks       int64   `json:"completed_tasks"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// EmployeeHours is hours summed per employee, used for the delayed chart.
type EmployeeHours struct {
	EmployeeName string `json:"employee_name"`
	TotalHours   int64  `json:"total_hours"`
}

// TaskHours is one row of the completed task hours report.
type TaskHours struct {
	EmployeeID   int64   `json:"employee_id"`
	EmployeeName string  `json:"employee_name"`
	TaskID       int64   `json:"task_id"`
	TaskName     string  `json:"task_name"`
	AvgHours     float64 `json:"avg_hours"`
}

// DepartmentContribution sums hours per department, ordered by department.
func DepartmentContribution(tasks []schema.TaskRecord) []DepartmentHours {
	sums := map[string]int64{}
	for _, t := range tasks {
		sums[t.Department] += t.HoursSpent
	}
	out := make([]DepartmentHours, 0, len(sums))
	for d, h := range sums {
		out = append(out, DepartmentHours{Department: d, TotalHours: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// Workload returns the limit employees with the most hours. Ties are broken
// by name. pending_tasks counts tasks still pending or in progress. A
// non-positive limit returns nothing.
func Workload(tasks []schema.TaskRecord, limit int) []EmployeeWorkload {
	if limit <= 0 {
		return []EmployeeWorkload{}
	}
	idx := map[string]int{}
	var out []EmployeeWorkload
	for _, t := range tasks {
		i, ok := idx[t.EmployeeName]
		if !ok {
			i = len(out)
			idx[t.EmployeeName] = i
			out = append(out, EmployeeWorkload{EmployeeName: t.EmployeeName})
		}
		out[i].TotalHours += t.HoursSpent
		if t.Pending() {
			out[i].PendingTasks++
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalHours != out[j].TotalHours {
			return out[i].TotalHours > out[j].TotalHours
		}
		return out[i].EmployeeName < out[j].EmployeeName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []EmployeeWorkload{}
	}
	return out
}

// Completion reports completed/total per department, ordered by department.
func Completion(tasks []schema.TaskRecord) []DepartmentCompletion {
	idx := map[string]int{}
	var out []DepartmentCompletion
	for _, t := range tasks {
		i, ok := idx[t.Department]
		if !ok {
			i = len(out)
			idx[t.Department] = i
			out = append(out, DepartmentCompletion{Department: t.Department})
		}
		out[i].TotalTasks++
		if t.Status == schema.StatusCompleted {
			out[i].CompletedTasks++
		}
	}
	for i := range out {
		if out[i].TotalTasks > 0 {
			out[i].CompletionPercentage = float64(out[i].CompletedTasks) * 100.0 / float64(out[i].TotalTasks)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	if out == nil {
		out = []DepartmentCompletion{}
	}
	return out
}

// Delayed returns tasks past their deadline that are not completed, ordered
// by employee name. A deadline equal to today is not late.
func Delayed(tasks []schema.TaskRecord, today schema.Date) []schema.TaskRecord {
	out := []schema.TaskRecord{}
	for _, t := range tasks {
		if t.Deadline.Before(today) && t.Status != schema.StatusCompleted {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EmployeeName < out[j].EmployeeName })
	return out
}

// HoursByEmployee sums hours per employee name, ordered by name.
func HoursByEmployee(tasks []schema.TaskRecord) []EmployeeHours {
	sums := map[string]int64{}
	for _, t := range tasks {
		sums[t.EmployeeName] += t.HoursSpent
	}
	out := make([]EmployeeHours, 0, len(sums))
	for n, h := range sums {
		out = append(out, EmployeeHours{EmployeeName: n, TotalHours: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeName < out[j].EmployeeName })
	return out
}

// CompletedTaskHours averages hours per (employee_id, employee_name,
// task_id, task_name) over completed tasks, in order of first appearance.
func CompletedTaskHours(tasks []schema.TaskRecord) []TaskHours {
	type key struct {
		empID    int64
		empName  string
		taskID   int64
		taskName string
	}
	type acc struct {
		sum, n int64
	}
	idx := map[key]int{}
	var keys []key
	var accs []acc
	for _, t := range tasks {
		if t.Status != schema.StatusCompleted {
			continue
		}
		k := key{t.EmployeeID, t.EmployeeName, t.TaskID, t.TaskName}
		i, ok := idx[k]
		if !ok {
			i = len(keys)
			idx[k] = i
			keys = append(keys, k)
			accs = append(accs, acc{})
		}
		accs[i].sum += t.HoursSpent
		accs[i].n++
	}
	out := make([]TaskHours, len(keys))
	for i, k := range keys {
		out[i] = TaskHours{
			EmployeeID:   k.empID,
			EmployeeName: k.empName,
			TaskID:       k.taskID,
			TaskName:     k.taskName,
			AvgHours:     float64(accs[i].sum) / float64(accs[i].n),
		}
	}
	return out
}
