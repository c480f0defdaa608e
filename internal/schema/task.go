// Package schema defines the task-tracking record stored by taskstats and the
// contract its CSV rows are validated against.
package schema

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

// Status values. Stored lowercase.
const (
	StatusPending    = "pending"
	StatusInProgress = "in progress"
	StatusCompleted  = "completed"
)

// Department values. Stored lowercase.
const (
	DepartmentEngineering = "engineering"
	DepartmentHR          = "hr"
	DepartmentMarketing   = "marketing"
)

var (
	// Statuses lists the accepted status values in display order.
	Statuses = []string{StatusPending, StatusInProgress, StatusCompleted}
	// Departments lists the accepted department values in display order.
	Departments = []string{DepartmentEngineering, DepartmentHR, DepartmentMarketing}
)

// Column names, in the order used for INSERT and SELECT. ID is storage-assigned
// and never part of an insert.
const (
	ColID           = "id"
	ColEmployeeID   = "employee_id"
	ColEmployeeName = "employee_name"
	ColDepartment   = "department"
	ColTaskID       = "task_id"
	ColTaskName     = "task_name"
	ColHoursSpent   = "hours_spent"
	ColDeadline     = "deadline"
	ColStatus       = "status"
)

// InsertColumns is the ordered column list for inserts.
var InsertColumns = []string{
	ColEmployeeID, ColEmployeeName, ColDepartment, ColTaskID,
	ColTaskName, ColHoursSpent, ColDeadline, ColStatus,
}

// SelectColumns is InsertColumns prefixed with the surrogate id.
var SelectColumns = append([]string{ColID}, InsertColumns...)

// TaskRecord is one employee task assignment.
type TaskRecord struct {
	ID           int64  `db:"id" json:"id"`
	EmployeeID   int64  `db:"employee_id" json:"employee_id"`
	EmployeeName string `db:"employee_name" json:"employee_name"`
	Department   string `db:"department" json:"department"`
	TaskID       int64  `db:"task_id" json:"task_id"`
	TaskName     string `db:"task_name" json:"task_name"`
	HoursSpent   int64  `db:"hours_spent" json:"hours_spent"`
	Deadline     Date   `db:"deadline" json:"deadline"`
	Status       string `db:"status" json:"status"`
}

// Args returns the record's values aligned with InsertColumns.
func (t TaskRecord) Args() []any {
	return []any{
		t.EmployeeID, t.EmployeeName, t.Department, t.TaskID,
		t.TaskName, t.HoursSpent, t.Deadline, t.Status,
	}
}

// Pending reports whether the task still counts as open work.
func (t TaskRecord) Pending() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}

// Date is a calendar date without time of day. It scans from the DATE/TEXT
// representations the supported drivers return and marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location and returns it as
// a UTC midnight Date.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date, accepting non-padded month/day.
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{DateLayout, "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{t}, nil
		}
	}
	return Date{}, fmt.Errorf("schema: invalid date %q", s)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// String returns the date as YYYY-MM-DD.
func (d Date) String() string { return d.Format(DateLayout) }

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	p, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// Value implements driver.Valuer. Dates travel as ISO text, which every
// supported backend converts into its DATE type.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		return fmt.Errorf("schema: deadline is NULL")
	default:
		return fmt.Errorf("schema: cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	// Drivers that hand back DATETIME text append a time component.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	p, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}
