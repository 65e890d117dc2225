package model

import "time"

// Employee is a registered employee. EmployeeID is the business key.
type Employee struct {
	EmployeeID string    `json:"employee_id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status is the attendance status recorded for a day.
type Status string

const (
	Present Status = "Present"
	Absent  Status = "Absent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == Present || s == Absent
}

// Attendance is one employee's status for one calendar day.
type Attendance struct {
	EmployeeID string    `json:"employee_id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmployeePatch holds the fields a caller supplied on update.
// The employee id and created_at are never patchable.
type EmployeePatch struct {
	FullName   Optional[string] `json:"full_name"`
	Email      Optional[string] `json:"email"`
	Department Optional[string] `json:"department"`
}

// Empty reports whether no field was supplied.
func (p EmployeePatch) Empty() bool {
	return !p.FullName.Set && !p.Email.Set && !p.Department.Set
}

// Apply returns e with the supplied fields replaced.
func (p EmployeePatch) Apply(e Employee) Employee {
	if v, ok := p.FullName.Get(); ok {
		e.FullName = v
	}
	if v, ok := p.Email.Get(); ok {
		e.Email = v
	}
	if v, ok := p.Department.Get(); ok {
		e.Department = v
	}
	return e
}

// DaySummary aggregates attendance for a single date.
type DaySummary struct {
	Date           string `json:"date"`
	TotalEmployees int64  `json:"total_employees"`
	Present        int    `json:"present"`
	Absent         int    `json:"absent"`
	Unmarked       int64  `json:"unmarked"`
}
