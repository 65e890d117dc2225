// Package orphans reports attendance records left behind when an employee
// is deleted. Deletion never cascades; this makes the gap visible.
package orphans

import (
	"context"
	"encoding/json"
	"log"

	"github.com/pkg/errors"

	"github.com/hrms-lite/hrms/internal/employee"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/queue"
	"github.com/hrms-lite/hrms/internal/store"
)

// Reporter consumes employee.deleted events.
type Reporter struct {
	records store.AttendanceCollection
	metrics *metrics.Metrics
}

// NewReporter creates a reporter. m may be nil.
func NewReporter(records store.AttendanceCollection, m *metrics.Metrics) *Reporter {
	return &Reporter{records: records, metrics: m}
}

// Run handles messages until the channel closes.
func (r *Reporter) Run(ctx context.Context, messages <-chan queue.Message) {
	for msg := range messages {
		if msg.Type != queue.TypeEmployeeDeleted {
			continue
		}
		if _, err := r.Handle(ctx, msg); err != nil {
			log.Printf("orphan check for message %s failed: %v", msg.ID, err)
		}
	}
}

// Handle counts the attendance records still referencing the deleted
// employee and returns that count.
func (r *Reporter) Handle(ctx context.Context, msg queue.Message) (int64, error) {
	var event employee.DeletedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return 0, errors.Wrap(err, "decoding employee.deleted body")
	}
	if event.EmployeeID == "" {
		return 0, errors.New("employee.deleted without employee_id")
	}
	n, err := r.records.CountByEmployee(ctx, event.EmployeeID)
	if err != nil {
		return 0, errors.Wrapf(err, "counting attendance for %s", event.EmployeeID)
	}
	if n > 0 {
		log.Printf("employee %s deleted with %d attendance record(s) left in place", event.EmployeeID, n)
		if r.metrics != nil {
			r.metrics.OrphanedRecords.Add(float64(n))
		}
	}
	return n, nil
}
