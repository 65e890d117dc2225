// Package validate implements the request validation performed before any
// service logic runs. Every function returns the normalized value it
// checked; callers store that value, not their input.
package validate

import (
	"strings"

	"github.com/Azure/go-autorest/autorest/date"
	"github.com/go-playground/validator/v10"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/model"
)

// DateFormat is the layout accepted for attendance dates.
const DateFormat = "2006-01-02"

var v = validator.New()

// Employee trims and checks every field of a new employee.
func Employee(e model.Employee) (model.Employee, error) {
	var err error
	if e.EmployeeID, err = required("employee_id", e.EmployeeID); err != nil {
		return model.Employee{}, err
	}
	if e.FullName, err = required("full_name", e.FullName); err != nil {
		return model.Employee{}, err
	}
	if e.Email, err = Email(e.Email); err != nil {
		return model.Employee{}, err
	}
	if e.Department, err = required("department", e.Department); err != nil {
		return model.Employee{}, err
	}
	return e, nil
}

// Patch applies the create rules to each supplied field of p. Absent fields
// are left absent.
func Patch(p model.EmployeePatch) (model.EmployeePatch, error) {
	if s, ok := p.FullName.Get(); ok {
		trimmed, err := required("full_name", s)
		if err != nil {
			return model.EmployeePatch{}, err
		}
		p.FullName = model.Some(trimmed)
	}
	if s, ok := p.Email.Get(); ok {
		email, err := Email(s)
		if err != nil {
			return model.EmployeePatch{}, err
		}
		p.Email = model.Some(email)
	}
	if s, ok := p.Department.Get(); ok {
		trimmed, err := required("department", s)
		if err != nil {
			return model.EmployeePatch{}, err
		}
		p.Department = model.Some(trimmed)
	}
	return p, nil
}

// Email checks address syntax. Surrounding whitespace is dropped.
func Email(s string) (string, error) {
	s = strings.TrimSpace(s)
	if err := v.Var(s, "required,email"); err != nil {
		return "", apperr.Invalidf("email: value is not a valid email address")
	}
	return s, nil
}

// Date checks that s is a calendar day in YYYY-MM-DD form.
func Date(s string) error {
	if _, err := date.ParseDate(s); err != nil {
		return apperr.BadRequestf("Date must be in YYYY-MM-DD format")
	}
	return nil
}

// Status checks that s is exactly one of the known status literals.
func Status(s string) (model.Status, error) {
	status := model.Status(s)
	if !status.Valid() {
		return "", apperr.BadRequestf("status must be one of '%s' or '%s', got '%s'", model.Present, model.Absent, s)
	}
	return status, nil
}

// Attendance checks a mark-attendance request.
func Attendance(a model.Attendance) (model.Attendance, error) {
	var err error
	if a.EmployeeID, err = required("employee_id", a.EmployeeID); err != nil {
		return model.Attendance{}, err
	}
	if err := Date(a.Date); err != nil {
		return model.Attendance{}, err
	}
	if a.Status, err = Status(string(a.Status)); err != nil {
		return model.Attendance{}, err
	}
	return a, nil
}

func required(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.Invalidf("%s: field cannot be empty", field)
	}
	return s, nil
}
