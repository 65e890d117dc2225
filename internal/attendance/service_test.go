package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/employee"
	"github.com/hrms-lite/hrms/internal/model"
	"github.com/hrms-lite/hrms/internal/store"
)

var fixedNow = func() time.Time { return time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC) }

type fixture struct {
	gw         *store.Memory
	employees  *employee.Service
	attendance *Service
}

func newFixture(t *testing.T, ids ...string) fixture {
	t.Helper()
	gw := store.NewMemory()
	if err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	employees := employee.NewService(gw.Employees(), employee.WithClock(fixedNow))
	for _, id := range ids {
		_, err := employees.Create(context.Background(), model.Employee{
			EmployeeID: id, FullName: "Name " + id, Email: id + "@co.com", Department: "Eng",
		})
		if err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	return fixture{gw: gw, employees: employees, attendance: NewService(gw.Attendance(), employees, fixedNow, nil)}
}

func TestMark(t *testing.T) {
	f := newFixture(t, "E1")
	ctx := context.Background()

	got, err := f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E1", Date: "2024-01-15", Status: model.Present})
	if err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if !got.CreatedAt.Equal(fixedNow()) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixedNow())
	}

	_, err = f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E1", Date: "2024-01-15", Status: model.Absent})
	if !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("second Mark = %v, want Conflict", err)
	}
	if err.Error() != "Attendance already marked for 'E1' on 2024-01-15" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestMarkUnknownEmployeeCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E9", Date: "2024-01-15", Status: model.Present})
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	if n, _ := f.gw.Attendance().CountByEmployee(ctx, "E9"); n != 0 {
		t.Errorf("records for E9 = %d, want 0", n)
	}
}

func TestMarkValidationShortCircuits(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   model.Attendance
		kind apperr.Kind
	}{
		{"bad date", model.Attendance{EmployeeID: "E9", Date: "2024-13-40", Status: model.Present}, apperr.BadRequest},
		{"bad status", model.Attendance{EmployeeID: "E9", Date: "2024-01-15", Status: "Late"}, apperr.BadRequest},
		{"blank id", model.Attendance{EmployeeID: " ", Date: "2024-01-15", Status: model.Present}, apperr.Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// E9 does not exist; validation must fail before the lookup.
			_, err := f.attendance.Mark(context.Background(), tt.in)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v (%v), want %v", got, err, tt.kind)
			}
		})
	}
}

// hidingRecords makes the duplicate pre-check miss.
type hidingRecords struct{ store.AttendanceCollection }

func (hidingRecords) Find(context.Context, string, string) (*model.Attendance, error) {
	return nil, nil
}

func TestMarkIndexRejectionIsConflict(t *testing.T) {
	f := newFixture(t, "E1")
	svc := NewService(hidingRecords{f.gw.Attendance()}, f.employees, fixedNow, nil)
	ctx := context.Background()
	in := model.Attendance{EmployeeID: "E1", Date: "2024-01-15", Status: model.Present}

	if _, err := svc.Mark(ctx, in); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if _, err := svc.Mark(ctx, in); !apperr.Is(err, apperr.Conflict) {
		t.Fatalf("second Mark = %v, want Conflict", err)
	}
}

func TestListByEmployee(t *testing.T) {
	f := newFixture(t, "E1", "E2")
	ctx := context.Background()
	for _, d := range []string{"2024-01-10", "2024-01-15", "2024-01-12"} {
		if _, err := f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E1", Date: d, Status: model.Present}); err != nil {
			t.Fatalf("Mark %s: %v", d, err)
		}
	}

	records, err := f.attendance.ListByEmployee(ctx, "E1")
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	want := []string{"2024-01-15", "2024-01-12", "2024-01-10"}
	if len(records) != len(want) {
		t.Fatalf("len = %d, want %d", len(records), len(want))
	}
	for i := range want {
		if records[i].Date != want[i] {
			t.Errorf("records[%d].Date = %s, want %s", i, records[i].Date, want[i])
		}
	}

	empty, err := f.attendance.ListByEmployee(ctx, "E2")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("E2 records = %v, %v; want empty non-nil", empty, err)
	}
}

func TestListByEmployeeAfterDelete(t *testing.T) {
	f := newFixture(t, "E1")
	ctx := context.Background()
	_, _ = f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E1", Date: "2024-01-15", Status: model.Present})
	if _, err := f.employees.Delete(ctx, "E1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.attendance.ListByEmployee(ctx, "E1"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("ListByEmployee = %v, want NotFound", err)
	}
	// The record is not cascaded away.
	if n, _ := f.gw.Attendance().CountByEmployee(ctx, "E1"); n != 1 {
		t.Errorf("orphaned records = %d, want 1", n)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t, "E1", "E2", "E3")
	ctx := context.Background()
	_, _ = f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E1", Date: "2024-01-15", Status: model.Present})
	_, _ = f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E2", Date: "2024-01-15", Status: model.Absent})
	_, _ = f.attendance.Mark(ctx, model.Attendance{EmployeeID: "E3", Date: "2024-01-14", Status: model.Present})

	got, err := f.attendance.Summary(ctx, "2024-01-15")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := model.DaySummary{Date: "2024-01-15", TotalEmployees: 3, Present: 1, Absent: 1, Unmarked: 1}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, err := f.attendance.Summary(ctx, "yesterday"); !apperr.Is(err, apperr.BadRequest) {
		t.Errorf("bad date = %v, want BadRequest", err)
	}
	if f.attendance.Today() != "2024-01-15" {
		t.Errorf("Today = %s", f.attendance.Today())
	}
}
