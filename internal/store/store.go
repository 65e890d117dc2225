// Package store is the storage gateway. It owns the connection to the
// backing store and guarantees the uniqueness indexes exist:
//
//	employees:  employee_id, email
//	attendance: (employee_id, date)
//
// Application code may pre-check these constraints for friendly errors, but
// only the indexes are relied on under concurrent writers.
package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrms-lite/hrms/internal/model"
)

// Unique index names shared by every backend.
const (
	IndexEmployeeID   = "employee_id_unique"
	IndexEmail        = "email_unique"
	IndexEmployeeDate = "employee_date_unique"
)

// ErrNotConnected is returned by collection handles used before Connect.
var ErrNotConnected = errors.New("store: not connected")

// DuplicateKeyError reports a write rejected by a unique index.
type DuplicateKeyError struct {
	Index string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: duplicate key on %s: %v", e.Index, e.Err)
	}
	return "store: duplicate key on " + e.Index
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// DuplicateIndex returns the violated index name when err is a
// *DuplicateKeyError.
func DuplicateIndex(err error) (string, bool) {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Index, true
	}
	return "", false
}

// EmployeeCollection is the employees handle. Find methods return nil, nil
// when nothing matches.
type EmployeeCollection interface {
	Insert(ctx context.Context, e model.Employee) error
	FindByID(ctx context.Context, employeeID string) (*model.Employee, error)
	FindByEmail(ctx context.Context, email string) (*model.Employee, error)
	// FindByEmailExcluding matches email on any employee whose id is not excludeID.
	FindByEmailExcluding(ctx context.Context, email, excludeID string) (*model.Employee, error)
	// Update applies patch to the employee and reports whether one matched.
	Update(ctx context.Context, employeeID string, patch model.EmployeePatch) (bool, error)
	// Delete removes the employee and reports whether one was deleted.
	Delete(ctx context.Context, employeeID string) (bool, error)
	// List returns every employee, newest created_at first.
	List(ctx context.Context) ([]model.Employee, error)
	Count(ctx context.Context) (int64, error)
}

// AttendanceCollection is the attendance handle.
type AttendanceCollection interface {
	Insert(ctx context.Context, a model.Attendance) error
	Find(ctx context.Context, employeeID, date string) (*model.Attendance, error)
	// ListByEmployee returns the employee's records, newest date first.
	ListByEmployee(ctx context.Context, employeeID string) ([]model.Attendance, error)
	ListByDate(ctx context.Context, date string) ([]model.Attendance, error)
	CountByEmployee(ctx context.Context, employeeID string) (int64, error)
}

// Gateway owns a store connection.
type Gateway interface {
	// Connect opens the connection and ensures the unique indexes exist.
	// Calling it again on a connected gateway is a no-op.
	Connect(ctx context.Context) error
	// Disconnect releases the connection. It is safe to call before
	// Connect and more than once.
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	Employees() EmployeeCollection
	Attendance() AttendanceCollection
}

// Backend names accepted by New.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string
	MongoURL    string
	DBName      string
	DatabaseURL string
}

// New builds an unconnected gateway for opts.Backend.
func New(opts Options) (Gateway, error) {
	switch opts.Backend {
	case BackendMongo, "":
		return NewMongo(opts.MongoURL, opts.DBName), nil
	case BackendPostgres:
		return NewPostgres(opts.DatabaseURL), nil
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("store: unknown backend %q", opts.Backend)
	}
}
