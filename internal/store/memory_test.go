package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hrms-lite/hrms/internal/model"
)

func connectedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return m
}

func TestMemoryRequiresConnect(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Employees().Insert(ctx, model.Employee{EmployeeID: "E1"}); err != ErrNotConnected {
		t.Errorf("Insert before Connect = %v, want ErrNotConnected", err)
	}
	if err := m.Ping(ctx); err != ErrNotConnected {
		t.Errorf("Ping before Connect = %v, want ErrNotConnected", err)
	}
}

func TestMemoryDisconnectIsSafe(t *testing.T) {
	var nilGateway *Memory
	if err := nilGateway.Disconnect(context.Background()); err != nil {
		t.Errorf("nil Disconnect = %v", err)
	}
	m := NewMemory()
	for i := 0; i < 2; i++ {
		if err := m.Disconnect(context.Background()); err != nil {
			t.Errorf("Disconnect #%d = %v", i+1, err)
		}
	}
}

func TestMemoryEmployeeUniqueIndexes(t *testing.T) {
	m := connectedMemory(t)
	ctx := context.Background()
	employees := m.Employees()

	if err := employees.Insert(ctx, model.Employee{EmployeeID: "E1", Email: "ann@co.com"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tests := []struct {
		name  string
		in    model.Employee
		index string
	}{
		{"same id", model.Employee{EmployeeID: "E1", Email: "other@co.com"}, IndexEmployeeID},
		{"same email", model.Employee{EmployeeID: "E2", Email: "ann@co.com"}, IndexEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, ok := DuplicateIndex(employees.Insert(ctx, tt.in))
			if !ok || index != tt.index {
				t.Errorf("DuplicateIndex = %q, %v; want %q", index, ok, tt.index)
			}
		})
	}
}

func TestMemoryConcurrentInsertSingleWinner(t *testing.T) {
	m := connectedMemory(t)
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Employees().Insert(ctx, model.Employee{EmployeeID: "E1", Email: "ann@co.com"})
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		if _, ok := DuplicateIndex(err); !ok {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("%d inserts succeeded, want 1", wins)
	}
}

func TestMemoryUpdateEmailExclusion(t *testing.T) {
	m := connectedMemory(t)
	ctx := context.Background()
	employees := m.Employees()
	_ = employees.Insert(ctx, model.Employee{EmployeeID: "E1", Email: "ann@co.com"})
	_ = employees.Insert(ctx, model.Employee{EmployeeID: "E2", Email: "bob@co.com"})

	if ok, err := employees.Update(ctx, "E1", model.EmployeePatch{Email: model.Some("ann@co.com")}); err != nil || !ok {
		t.Errorf("self email update = %v, %v", ok, err)
	}
	if _, err := employees.Update(ctx, "E1", model.EmployeePatch{Email: model.Some("bob@co.com")}); err == nil {
		t.Error("expected duplicate on another employee's email")
	}
	if ok, err := employees.Update(ctx, "E404", model.EmployeePatch{FullName: model.Some("X")}); err != nil || ok {
		t.Errorf("missing update = %v, %v; want false, nil", ok, err)
	}

	other, err := employees.FindByEmailExcluding(ctx, "bob@co.com", "E1")
	if err != nil || other == nil || other.EmployeeID != "E2" {
		t.Errorf("FindByEmailExcluding = %+v, %v", other, err)
	}
	self, err := employees.FindByEmailExcluding(ctx, "ann@co.com", "E1")
	if err != nil || self != nil {
		t.Errorf("FindByEmailExcluding self = %+v, %v; want nil", self, err)
	}
}

func TestMemoryOrdering(t *testing.T) {
	m := connectedMemory(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"E1", "E2", "E3"} {
		_ = m.Employees().Insert(ctx, model.Employee{EmployeeID: id, Email: id + "@co.com", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	list, err := m.Employees().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].EmployeeID != "E3" || list[2].EmployeeID != "E1" {
		t.Errorf("List order = %+v, want newest first", list)
	}

	for _, d := range []string{"2024-01-02", "2024-01-10", "2023-12-31"} {
		if err := m.Attendance().Insert(ctx, model.Attendance{EmployeeID: "E1", Date: d, Status: model.Present}); err != nil {
			t.Fatalf("Insert %s: %v", d, err)
		}
	}
	records, err := m.Attendance().ListByEmployee(ctx, "E1")
	if err != nil {
		t.Fatalf("ListByEmployee: %v", err)
	}
	want := []string{"2024-01-10", "2024-01-02", "2023-12-31"}
	for i, r := range records {
		if r.Date != want[i] {
			t.Errorf("records[%d].Date = %s, want %s", i, r.Date, want[i])
		}
	}

	index, ok := DuplicateIndex(m.Attendance().Insert(ctx, model.Attendance{EmployeeID: "E1", Date: "2024-01-02", Status: model.Absent}))
	if !ok || index != IndexEmployeeDate {
		t.Errorf("duplicate attendance index = %q, %v", index, ok)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	g, err := New(Options{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("New memory: %v", err)
	}
	if _, ok := g.(*Memory); !ok {
		t.Errorf("New memory returned %T", g)
	}
}
