package employee

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/model"
	"github.com/hrms-lite/hrms/internal/queue"
	"github.com/hrms-lite/hrms/internal/store"
	"github.com/hrms-lite/hrms/internal/validate"
)

// Publisher receives lifecycle events. queue.Queue satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// DeletedEvent is the body of a queue.TypeEmployeeDeleted message.
type DeletedEvent struct {
	EmployeeID string `json:"employee_id"`
}

// Service implements employee CRUD and its uniqueness rules.
type Service struct {
	employees store.EmployeeCollection
	now       func() time.Time
	publisher Publisher
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPublisher sends an event after each delete.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

// WithMetrics records domain counters.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService creates a service over the employees collection.
func NewService(employees store.EmployeeCollection, opts ...Option) *Service {
	s := &Service{employees: employees, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func idConflict(id string) error {
	return apperr.Conflictf("Employee ID '%s' already exists", id)
}

func emailConflict(email string) error {
	return apperr.Conflictf("Email '%s' already registered", email)
}

func notFound(id string) error {
	return apperr.NotFoundf("Employee '%s' not found", id)
}

// Create registers a new employee. An id collision is reported before an
// email collision.
func (s *Service) Create(ctx context.Context, in model.Employee) (model.Employee, error) {
	e, err := validate.Employee(in)
	if err != nil {
		return model.Employee{}, err
	}

	existing, err := s.employees.FindByID(ctx, e.EmployeeID)
	if err != nil {
		return model.Employee{}, errors.Wrap(err, "checking employee id")
	}
	if existing != nil {
		s.conflict(store.IndexEmployeeID)
		return model.Employee{}, idConflict(e.EmployeeID)
	}
	existing, err = s.employees.FindByEmail(ctx, e.Email)
	if err != nil {
		return model.Employee{}, errors.Wrap(err, "checking employee email")
	}
	if existing != nil {
		s.conflict(store.IndexEmail)
		return model.Employee{}, emailConflict(e.Email)
	}

	e.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := s.employees.Insert(ctx, e); err != nil {
		return model.Employee{}, s.writeError(err, e.EmployeeID, e.Email)
	}
	if s.metrics != nil {
		s.metrics.EmployeesCreated.Inc()
	}
	return e, nil
}

// List returns every employee, newest first.
func (s *Service) List(ctx context.Context) ([]model.Employee, error) {
	employees, err := s.employees.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing employees")
	}
	if employees == nil {
		employees = []model.Employee{}
	}
	return employees, nil
}

// Get returns one employee.
func (s *Service) Get(ctx context.Context, id string) (model.Employee, error) {
	e, err := s.employees.FindByID(ctx, id)
	if err != nil {
		return model.Employee{}, errors.Wrap(err, "finding employee")
	}
	if e == nil {
		return model.Employee{}, notFound(id)
	}
	return *e, nil
}

// Exists reports whether an employee with id is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	e, err := s.employees.FindByID(ctx, id)
	if err != nil {
		return false, errors.Wrap(err, "finding employee")
	}
	return e != nil, nil
}

// Count returns the number of registered employees.
func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.employees.Count(ctx)
	return n, errors.Wrap(err, "counting employees")
}

// Update changes the supplied fields of an employee and returns the stored
// record. Moving to the employee's own current email is not a conflict.
func (s *Service) Update(ctx context.Context, id string, patch model.EmployeePatch) (model.Employee, error) {
	patch, err := validate.Patch(patch)
	if err != nil {
		return model.Employee{}, err
	}

	existing, err := s.employees.FindByID(ctx, id)
	if err != nil {
		return model.Employee{}, errors.Wrap(err, "finding employee")
	}
	if existing == nil {
		return model.Employee{}, notFound(id)
	}
	if patch.Empty() {
		return model.Employee{}, apperr.BadRequestf("No fields provided to update")
	}
	if email, ok := patch.Email.Get(); ok {
		other, err := s.employees.FindByEmailExcluding(ctx, email, id)
		if err != nil {
			return model.Employee{}, errors.Wrap(err, "checking employee email")
		}
		if other != nil {
			s.conflict(store.IndexEmail)
			return model.Employee{}, emailConflict(email)
		}
	}

	matched, err := s.employees.Update(ctx, id, patch)
	if err != nil {
		email, _ := patch.Email.Get()
		return model.Employee{}, s.writeError(err, id, email)
	}
	if !matched {
		return model.Employee{}, notFound(id)
	}
	return s.Get(ctx, id)
}

// Delete removes an employee and returns a confirmation message. Attendance
// records referencing the employee are left in place.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	deleted, err := s.employees.Delete(ctx, id)
	if err != nil {
		return "", errors.Wrap(err, "deleting employee")
	}
	if !deleted {
		return "", notFound(id)
	}
	if s.metrics != nil {
		s.metrics.EmployeesDeleted.Inc()
	}
	s.publishDeleted(ctx, id)
	return fmt.Sprintf("Employee '%s' deleted successfully", id), nil
}

func (s *Service) publishDeleted(ctx context.Context, id string) {
	if s.publisher == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeEmployeeDeleted, DeletedEvent{EmployeeID: id})
	if err == nil {
		err = s.publisher.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("publish %s for %s failed: %v", queue.TypeEmployeeDeleted, id, err)
	}
}

// writeError turns a unique index rejection into the same Conflict the
// pre-checks return; this is the path taken when two writers race.
func (s *Service) writeError(err error, id, email string) error {
	index, ok := store.DuplicateIndex(err)
	if !ok {
		return errors.Wrap(err, "writing employee")
	}
	s.conflict(index)
	if index == store.IndexEmail {
		return emailConflict(email)
	}
	return idConflict(id)
}

func (s *Service) conflict(index string) {
	if s.metrics != nil {
		s.metrics.Conflicts.WithLabelValues(index).Inc()
	}
}
