package schema

// Field describes one column of an inbound row.
type Field struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"` // "int" | "text" | "date" | "choice"
	Required  bool     `json:"required,omitempty"`
	Enum      []string `json:"enum,omitempty"`
	Min       *int64   `json:"min,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Default   string   `json:"default,omitempty"`
}

// Contract is the ordered set of fields a row is checked against.
type Contract struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field returns the field named name.
func (c Contract) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func minOf(n int64) *int64 { return &n }

// TaskContract is the contract for TaskRecord rows.
var TaskContract = Contract{
	Name: "employee_tasks",
	Fields: []Field{
		{Name: ColEmployeeID, Type: "int", Required: true, Min: minOf(1)},
		{Name: ColEmployeeName, Type: "text", Required: true, MaxLength: 255},
		{Name: ColDepartment, Type: "choice", Enum: Departments, Default: DepartmentEngineering},
		{Name: ColTaskID, Type: "int", Required: true, Min: minOf(1)},
		{Name: ColTaskName, Type: "text", Required: true, MaxLength: 255},
		{Name: ColHoursSpent, Type: "int", Required: true, Min: minOf(0)},
		{Name: ColDeadline, Type: "date", Required: true},
		{Name: ColStatus, Type: "choice", Enum: Statuses, Default: StatusInProgress},
	},
}
