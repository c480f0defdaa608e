package builtin

import (
	"reflect"
	"testing"

	"taskstats/internal/records"
	"taskstats/internal/schema"
)

func validRow() records.Record {
	return records.Record{
		"employee_id":   "1",
		"employee_name": "Alice",
		"department":    "engineering",
		"task_id":       "10",
		"task_name":     "Design",
		"hours_spent":   "5",
		"deadline":      "2030-01-01",
		"status":        "pending",
	}
}

/*
TestValidateRecord_Valid verifies a well-formed row produces a fully typed
record with trimmed text fields.
*/
func TestValidateRecord_Valid(t *testing.T) {
	r := validRow()
	r["employee_name"] = "  Alice "
	r["hours_spent"] = "5.0"

	rec, fe := NewValidate().Record(r)
	if fe != nil {
		t.Fatalf("unexpected errors: %v", fe)
	}
	want := schema.TaskRecord{
		EmployeeID:   1,
		EmployeeName: "Alice",
		Department:   "engineering",
		TaskID:       10,
		TaskName:     "Design",
		HoursSpent:   5,
		Deadline:     mustDate(t, "2030-01-01"),
		Status:       "pending",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("record = %#v\nwant %#v", rec, want)
	}
}

func TestValidateRecord_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(records.Record)
		field string
		want  string
	}{
		{"missing id", func(r records.Record) { delete(r, "employee_id") }, "employee_id", MsgRequired},
		{"bad id", func(r records.Record) { r["employee_id"] = "x1" }, "employee_id", MsgInvalidInt},
		{"zero id", func(r records.Record) { r["employee_id"] = "0" }, "employee_id", "Ensure this value is greater than or equal to 1."},
		{"negative hours", func(r records.Record) { r["hours_spent"] = "-3" }, "hours_spent", "Ensure this value is greater than or equal to 0."},
		{"blank name", func(r records.Record) { r["employee_name"] = "   " }, "employee_name", MsgBlank},
		{"bad status", func(r records.Record) { r["status"] = "done" }, "status", `"done" is not a valid choice.`},
		{"empty department", func(r records.Record) { r["department"] = "" }, "department", `"" is not a valid choice.`},
		{"bad date", func(r records.Record) { r["deadline"] = "01.01.2030" }, "deadline", MsgInvalidDate},
		{"blank int", func(r records.Record) { r["task_id"] = "" }, "task_id", MsgInvalidInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRow()
			tt.edit(r)
			_, fe := NewValidate().Record(r)
			if fe == nil {
				t.Fatalf("expected errors")
			}
			got := fe[tt.field]
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("errors[%s] = %v; want [%q]", tt.field, got, tt.want)
			}
		})
	}
}

func TestValidateRecord_TooLong(t *testing.T) {
	r := validRow()
	long := make([]rune, 256)
	for i := range long {
		long[i] = 'é'
	}
	r["task_name"] = string(long)

	_, fe := NewValidate().Record(r)
	if got := fe["task_name"]; len(got) != 1 || got[0] != "Ensure this field has no more than 255 characters." {
		t.Fatalf("errors[task_name] = %v", got)
	}
}

// TestValidateRecord_CollectsAllFields checks that every failing field is
// reported in one pass.
func TestValidateRecord_CollectsAllFields(t *testing.T) {
	r := records.Record{"employee_id": "a", "status": "", "department": ""}
	_, fe := NewValidate().Record(r)

	for _, f := range []string{"employee_id", "employee_name", "task_id", "task_name", "hours_spent", "deadline", "status", "department"} {
		if _, ok := fe[f]; !ok {
			t.Errorf("missing error for %s in %v", f, fe)
		}
	}
}

// TestValidateRecord_Defaults applies contract defaults to absent choice
// fields. The importer never hits this path because normalization fills
// missing keys with "", but partial updates do.
func TestValidateRecord_Defaults(t *testing.T) {
	r := validRow()
	delete(r, "status")
	delete(r, "department")

	rec, fe := NewValidate().Record(r)
	if fe != nil {
		t.Fatalf("unexpected errors: %v", fe)
	}
	if rec.Status != schema.StatusInProgress || rec.Department != schema.DepartmentEngineering {
		t.Fatalf("defaults not applied: status=%q department=%q", rec.Status, rec.Department)
	}
}

func TestLowerChoices(t *testing.T) {
	in := []records.Record{
		{"status": "In Progress", "department": "HR"},
		{"employee_id": "1"},
	}
	out := DefaultLowerChoices.Apply(in)

	if out[0]["status"] != "in progress" || out[0]["department"] != "hr" {
		t.Fatalf("row 0 not lowered: %v", out[0])
	}
	if v, ok := out[1]["status"]; !ok || v != "" {
		t.Fatalf("missing status should become empty string, got %q (present=%v)", v, ok)
	}
}

func TestFieldErrors_ErrorIsSorted(t *testing.T) {
	fe := FieldErrors{}
	fe.Add("status", "b")
	fe.Add("deadline", "a")
	if got, want := fe.Error(), "deadline: a; status: b"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
}

func mustDate(t *testing.T, s string) schema.Date {
	t.Helper()
	d, err := schema.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}
