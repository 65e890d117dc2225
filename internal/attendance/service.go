package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/model"
	"github.com/hrms-lite/hrms/internal/store"
	"github.com/hrms-lite/hrms/internal/validate"
)

// Employees is the employee lookup attendance depends on.
// *employee.Service satisfies it.
type Employees interface {
	Exists(ctx context.Context, employeeID string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Service records and reads daily attendance.
type Service struct {
	records   store.AttendanceCollection
	employees Employees
	now       func() time.Time
	metrics   *metrics.Metrics
}

// NewService creates a service. now may be nil to use time.Now; m may be nil.
func NewService(records store.AttendanceCollection, employees Employees, now func() time.Time, m *metrics.Metrics) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{records: records, employees: employees, now: now, metrics: m}
}

func (s *Service) requireEmployee(ctx context.Context, id string) error {
	ok, err := s.employees.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFoundf("Employee '%s' not found", id)
	}
	return nil
}

// Mark records an employee's status for a day. The employee must exist, and
// at most one record is kept per employee per day.
func (s *Service) Mark(ctx context.Context, in model.Attendance) (model.Attendance, error) {
	a, err := validate.Attendance(in)
	if err != nil {
		return model.Attendance{}, err
	}
	if err := s.requireEmployee(ctx, a.EmployeeID); err != nil {
		return model.Attendance{}, err
	}

	existing, err := s.records.Find(ctx, a.EmployeeID, a.Date)
	if err != nil {
		return model.Attendance{}, errors.Wrap(err, "checking attendance")
	}
	if existing != nil {
		return model.Attendance{}, s.duplicate(a)
	}

	a.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := s.records.Insert(ctx, a); err != nil {
		if _, ok := store.DuplicateIndex(err); ok {
			return model.Attendance{}, s.duplicate(a)
		}
		return model.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	if s.metrics != nil {
		s.metrics.AttendanceMarked.WithLabelValues(string(a.Status)).Inc()
	}
	return a, nil
}

func (s *Service) duplicate(a model.Attendance) error {
	if s.metrics != nil {
		s.metrics.Conflicts.WithLabelValues(store.IndexEmployeeDate).Inc()
	}
	return apperr.Conflictf("Attendance already marked for '%s' on %s", a.EmployeeID, a.Date)
}

// ListByEmployee returns the employee's records, newest date first. An
// unknown employee is NotFound even if orphaned records remain.
func (s *Service) ListByEmployee(ctx context.Context, employeeID string) ([]model.Attendance, error) {
	if err := s.requireEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	if records == nil {
		records = []model.Attendance{}
	}
	return records, nil
}

// Summary counts statuses marked on date against the current headcount.
// Records of deleted employees still count towards present/absent.
func (s *Service) Summary(ctx context.Context, date string) (model.DaySummary, error) {
	if err := validate.Date(date); err != nil {
		return model.DaySummary{}, err
	}
	total, err := s.employees.Count(ctx)
	if err != nil {
		return model.DaySummary{}, err
	}
	records, err := s.records.ListByDate(ctx, date)
	if err != nil {
		return model.DaySummary{}, errors.Wrap(err, "listing attendance by date")
	}

	summary := model.DaySummary{Date: date, TotalEmployees: total}
	for _, r := range records {
		switch r.Status {
		case model.Present:
			summary.Present++
		case model.Absent:
			summary.Absent++
		}
	}
	if marked := int64(summary.Present + summary.Absent); marked < total {
		summary.Unmarked = total - marked
	}
	return summary, nil
}

// Today returns the current UTC date in the attendance date format.
func (s *Service) Today() string {
	return s.now().UTC().Format(validate.DateFormat)
}
