package store

import (
	"context"
	"sort"
	"sync"

	"github.com/hrms-lite/hrms/internal/model"
)

// Memory is an in-process gateway for tests and local runs. It enforces the
// same unique indexes as the real backends.
type Memory struct {
	mu         sync.RWMutex
	connected  bool
	employees  map[string]model.Employee
	attendance map[attendanceKey]model.Attendance
}

type attendanceKey struct {
	employeeID string
	date       string
}

// NewMemory creates an empty, unconnected memory gateway.
func NewMemory() *Memory {
	return &Memory{
		employees:  make(map[string]model.Employee),
		attendance: make(map[attendanceKey]model.Attendance),
	}
}

func (m *Memory) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *Memory) Disconnect(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.connected {
		return ErrNotConnected
	}
	return nil
}

func (m *Memory) Employees() EmployeeCollection    { return memoryEmployees{m} }
func (m *Memory) Attendance() AttendanceCollection { return memoryAttendance{m} }

type memoryEmployees struct{ m *Memory }

func (c memoryEmployees) Insert(ctx context.Context, e model.Employee) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if !c.m.connected {
		return ErrNotConnected
	}
	if _, ok := c.m.employees[e.EmployeeID]; ok {
		return &DuplicateKeyError{Index: IndexEmployeeID}
	}
	if c.m.emailOwnerLocked(e.Email, "") != nil {
		return &DuplicateKeyError{Index: IndexEmail}
	}
	c.m.employees[e.EmployeeID] = e
	return nil
}

func (c memoryEmployees) FindByID(ctx context.Context, employeeID string) (*model.Employee, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return nil, ErrNotConnected
	}
	e, ok := c.m.employees[employeeID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c memoryEmployees) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	return c.FindByEmailExcluding(ctx, email, "")
}

func (c memoryEmployees) FindByEmailExcluding(ctx context.Context, email, excludeID string) (*model.Employee, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return nil, ErrNotConnected
	}
	return c.m.emailOwnerLocked(email, excludeID), nil
}

// emailOwnerLocked finds the employee holding email, skipping excludeID.
// An empty excludeID skips nothing.
func (m *Memory) emailOwnerLocked(email, excludeID string) *model.Employee {
	for id, e := range m.employees {
		if e.Email == email && (excludeID == "" || id != excludeID) {
			return &e
		}
	}
	return nil
}

func (c memoryEmployees) Update(ctx context.Context, employeeID string, patch model.EmployeePatch) (bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if !c.m.connected {
		return false, ErrNotConnected
	}
	e, ok := c.m.employees[employeeID]
	if !ok {
		return false, nil
	}
	if email, ok := patch.Email.Get(); ok && c.m.emailOwnerLocked(email, employeeID) != nil {
		return false, &DuplicateKeyError{Index: IndexEmail}
	}
	c.m.employees[employeeID] = patch.Apply(e)
	return true, nil
}

func (c memoryEmployees) Delete(ctx context.Context, employeeID string) (bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if !c.m.connected {
		return false, ErrNotConnected
	}
	if _, ok := c.m.employees[employeeID]; !ok {
		return false, nil
	}
	delete(c.m.employees, employeeID)
	return true, nil
}

func (c memoryEmployees) List(ctx context.Context) ([]model.Employee, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return nil, ErrNotConnected
	}
	out := make([]model.Employee, 0, len(c.m.employees))
	for _, e := range c.m.employees {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (c memoryEmployees) Count(ctx context.Context) (int64, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return 0, ErrNotConnected
	}
	return int64(len(c.m.employees)), nil
}

type memoryAttendance struct{ m *Memory }

func (c memoryAttendance) Insert(ctx context.Context, a model.Attendance) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if !c.m.connected {
		return ErrNotConnected
	}
	key := attendanceKey{a.EmployeeID, a.Date}
	if _, ok := c.m.attendance[key]; ok {
		return &DuplicateKeyError{Index: IndexEmployeeDate}
	}
	c.m.attendance[key] = a
	return nil
}

func (c memoryAttendance) Find(ctx context.Context, employeeID, date string) (*model.Attendance, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return nil, ErrNotConnected
	}
	a, ok := c.m.attendance[attendanceKey{employeeID, date}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (c memoryAttendance) ListByEmployee(ctx context.Context, employeeID string) ([]model.Attendance, error) {
	records, err := c.filter(func(a model.Attendance) bool { return a.EmployeeID == employeeID })
	if err != nil {
		return nil, err
	}
	// YYYY-MM-DD sorts lexically in date order.
	sort.Slice(records, func(i, j int) bool { return records[i].Date > records[j].Date })
	return records, nil
}

func (c memoryAttendance) ListByDate(ctx context.Context, date string) ([]model.Attendance, error) {
	records, err := c.filter(func(a model.Attendance) bool { return a.Date == date })
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EmployeeID < records[j].EmployeeID })
	return records, nil
}

func (c memoryAttendance) CountByEmployee(ctx context.Context, employeeID string) (int64, error) {
	records, err := c.filter(func(a model.Attendance) bool { return a.EmployeeID == employeeID })
	return int64(len(records)), err
}

func (c memoryAttendance) filter(keep func(model.Attendance) bool) ([]model.Attendance, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	if !c.m.connected {
		return nil, ErrNotConnected
	}
	out := []model.Attendance{}
	for _, a := range c.m.attendance {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out, nil
}
