package handler

import (
	"bytes"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/attendance"
	"github.com/hrms-lite/hrms/internal/employee"
	"github.com/hrms-lite/hrms/internal/export"
	"github.com/hrms-lite/hrms/internal/model"
	"github.com/hrms-lite/hrms/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	employees  *employee.Service
	attendance *attendance.Service
	gateway    store.Gateway
	redis      *store.Redis // nil when no redis is configured
}

func New(employees *employee.Service, att *attendance.Service, gateway store.Gateway, redis *store.Redis) *Handler {
	return &Handler{employees: employees, attendance: att, gateway: gateway, redis: redis}
}

// fail writes err as {"error": message} with the status for its kind.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.BadRequest:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Invalid:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bind decodes the JSON body. A body that does not decode is a 422.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// ---------- Health ----------

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "HRMS Lite API is running"})
}

// Healthz pings the store and, when configured, redis.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.gateway.Ping(ctx) == nil
	body := gin.H{"status": "ok", "db": dbHealthy}
	status := http.StatusOK
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Employees ----------

type createEmployeeRequest struct {
	EmployeeID string `json:"employee_id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if !bind(c, &req) {
		return
	}
	e, err := h.employees.Create(c.Request.Context(), model.Employee{
		EmployeeID: req.EmployeeID,
		FullName:   req.FullName,
		Email:      req.Email,
		Department: req.Department,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	list, err := h.employees.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	e, err := h.employees.Get(c.Request.Context(), c.Param("employee_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// UpdateEmployee applies a partial update. Fields missing from the body,
// or sent as null, are left unchanged.
func (h *Handler) UpdateEmployee(c *gin.Context) {
	var patch model.EmployeePatch
	if !bind(c, &patch) {
		return
	}
	e, err := h.employees.Update(c.Request.Context(), c.Param("employee_id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEmployee(c *gin.Context) {
	msg, err := h.employees.Delete(c.Request.Context(), c.Param("employee_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// ExportEmployees returns every employee as an xlsx workbook.
func (h *Handler) ExportEmployees(c *gin.Context) {
	list, err := h.employees.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteEmployees(&buf, list); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="employees.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ---------- Attendance ----------

type markAttendanceRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Status     string `json:"status"`
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markAttendanceRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.attendance.Mark(c.Request.Context(), model.Attendance{
		EmployeeID: req.EmployeeID,
		Date:       req.Date,
		Status:     model.Status(req.Status),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAttendance(c *gin.Context) {
	records, err := h.attendance.ListByEmployee(c.Request.Context(), c.Param("employee_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// AttendanceSummary reports counts for ?date=, defaulting to today (UTC).
func (h *Handler) AttendanceSummary(c *gin.Context) {
	date := c.DefaultQuery("date", h.attendance.Today())
	summary, err := h.attendance.Summary(c.Request.Context(), date)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
