package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	EmployeesCreated prometheus.Counter
	EmployeesDeleted prometheus.Counter
	AttendanceMarked *prometheus.CounterVec
	Conflicts        *prometheus.CounterVec
	OrphanedRecords  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hrms",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EmployeesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "employees_created_total",
			Help:      "Employees created.",
		}),
		EmployeesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "employees_deleted_total",
			Help:      "Employees deleted.",
		}),
		AttendanceMarked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "attendance_marked_total",
			Help:      "Attendance records created by status.",
		}, []string{"status"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "uniqueness_conflicts_total",
			Help:      "Writes rejected by a uniqueness rule, by index.",
		}, []string{"index"}),
		OrphanedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrms",
			Name:      "orphaned_attendance_records_total",
			Help:      "Attendance records left behind by deleted employees.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.EmployeesCreated, m.EmployeesDeleted,
		m.AttendanceMarked, m.Conflicts, m.OrphanedRecords)
	return m
}

// GinMiddleware records request count and latency keyed by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
