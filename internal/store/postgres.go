package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/hrms-lite/hrms/internal/model"
)

// Postgres is the relational gateway, using pgx through database/sql.
type Postgres struct {
	connString string

	mu sync.Mutex
	db *sql.DB
}

// NewPostgres creates an unconnected gateway.
func NewPostgres(connString string) *Postgres {
	return &Postgres{connString: connString}
}

type migration struct {
	Index       int
	Description string
	Query       string
}

// schema is applied in order on every Connect; each step is idempotent.
var schema = []migration{
	{
		Index:       1,
		Description: "Create table: employees.",
		Query: `
		CREATE TABLE IF NOT EXISTS employees (
			id          BIGSERIAL PRIMARY KEY,
			employee_id TEXT NOT NULL,
			full_name   TEXT NOT NULL,
			email       TEXT NOT NULL,
			department  TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);`,
	},
	{
		Index:       2,
		Description: "Unique index: employees.employee_id.",
		Query:       `CREATE UNIQUE INDEX IF NOT EXISTS ` + IndexEmployeeID + ` ON employees (employee_id);`,
	},
	{
		Index:       3,
		Description: "Unique index: employees.email.",
		Query:       `CREATE UNIQUE INDEX IF NOT EXISTS ` + IndexEmail + ` ON employees (email);`,
	},
	{
		Index:       4,
		Description: "Create table: attendance.",
		Query: `
		CREATE TABLE IF NOT EXISTS attendance (
			id          BIGSERIAL PRIMARY KEY,
			employee_id TEXT NOT NULL,
			date        TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		);`,
	},
	{
		Index:       5,
		Description: "Unique index: attendance (employee_id, date).",
		Query:       `CREATE UNIQUE INDEX IF NOT EXISTS ` + IndexEmployeeDate + ` ON attendance (employee_id, date);`,
	},
}

func (g *Postgres) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db != nil {
		return nil
	}

	db, err := sql.Open("pgx", g.connString)
	if err != nil {
		return errors.Wrap(err, "opening postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return errors.Wrap(err, "pinging postgres")
	}
	for _, m := range schema {
		if _, err := db.ExecContext(ctx, m.Query); err != nil {
			_ = db.Close()
			return errors.Wrapf(err, "migration %d (%s)", m.Index, m.Description)
		}
	}
	g.db = db
	return nil
}

func (g *Postgres) Disconnect(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return errors.Wrap(err, "closing postgres")
}

func (g *Postgres) Ping(ctx context.Context) error {
	db, err := g.handle()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (g *Postgres) handle() (*sql.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil, ErrNotConnected
	}
	return g.db, nil
}

func (g *Postgres) Employees() EmployeeCollection    { return pgEmployees{g} }
func (g *Postgres) Attendance() AttendanceCollection { return pgAttendance{g} }

// pgWriteError maps unique_violation (SQLSTATE 23505) to *DuplicateKeyError.
// Postgres reports the violated unique index as the constraint name.
func pgWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &DuplicateKeyError{Index: pgErr.ConstraintName, Err: err}
	}
	return err
}

const employeeColumns = `employee_id, full_name, email, department, created_at`

type pgEmployees struct{ g *Postgres }

func scanEmployee(row interface{ Scan(...any) error }) (model.Employee, error) {
	var e model.Employee
	err := row.Scan(&e.EmployeeID, &e.FullName, &e.Email, &e.Department, &e.CreatedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func (c pgEmployees) Insert(ctx context.Context, e model.Employee) error {
	db, err := c.g.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, e.EmployeeID, e.FullName, e.Email, e.Department, e.CreatedAt)
	return pgWriteError(err)
}

func (c pgEmployees) findOne(ctx context.Context, where string, args ...any) (*model.Employee, error) {
	db, err := c.g.handle()
	if err != nil {
		return nil, err
	}
	e, err := scanEmployee(db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE `+where+` LIMIT 1`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding employee")
	}
	return &e, nil
}

func (c pgEmployees) FindByID(ctx context.Context, employeeID string) (*model.Employee, error) {
	return c.findOne(ctx, `employee_id = $1`, employeeID)
}

func (c pgEmployees) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	return c.findOne(ctx, `email = $1`, email)
}

func (c pgEmployees) FindByEmailExcluding(ctx context.Context, email, excludeID string) (*model.Employee, error) {
	return c.findOne(ctx, `email = $1 AND employee_id <> $2`, email, excludeID)
}

func (c pgEmployees) Update(ctx context.Context, employeeID string, patch model.EmployeePatch) (bool, error) {
	db, err := c.g.handle()
	if err != nil {
		return false, err
	}
	args := []any{}
	sets := []string{}
	add := func(column string, value model.Optional[string]) {
		if v, ok := value.Get(); ok {
			args = append(args, v)
			sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
		}
	}
	add("full_name", patch.FullName)
	add("email", patch.Email)
	add("department", patch.Department)
	if len(sets) == 0 {
		return false, errors.New("update: empty patch")
	}
	args = append(args, employeeID)
	res, err := db.ExecContext(ctx,
		`UPDATE employees SET `+strings.Join(sets, ", ")+` WHERE employee_id = $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return false, pgWriteError(err)
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "update rows affected")
}

func (c pgEmployees) Delete(ctx context.Context, employeeID string) (bool, error) {
	db, err := c.g.handle()
	if err != nil {
		return false, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM employees WHERE employee_id = $1`, employeeID)
	if err != nil {
		return false, errors.Wrap(err, "deleting employee")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "delete rows affected")
}

func (c pgEmployees) List(ctx context.Context) ([]model.Employee, error) {
	db, err := c.g.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "listing employees")
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning employee")
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (c pgEmployees) Count(ctx context.Context) (int64, error) {
	db, err := c.g.handle()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM employees`).Scan(&n)
	return n, errors.Wrap(err, "counting employees")
}

const attendanceColumns = `employee_id, date, status, created_at`

type pgAttendance struct{ g *Postgres }

func scanAttendance(row interface{ Scan(...any) error }) (model.Attendance, error) {
	var a model.Attendance
	err := row.Scan(&a.EmployeeID, &a.Date, &a.Status, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (c pgAttendance) Insert(ctx context.Context, a model.Attendance) error {
	db, err := c.g.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4)
	`, a.EmployeeID, a.Date, string(a.Status), a.CreatedAt)
	return pgWriteError(err)
}

func (c pgAttendance) Find(ctx context.Context, employeeID, date string) (*model.Attendance, error) {
	db, err := c.g.handle()
	if err != nil {
		return nil, err
	}
	a, err := scanAttendance(db.QueryRowContext(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE employee_id = $1 AND date = $2`, employeeID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding attendance")
	}
	return &a, nil
}

func (c pgAttendance) list(ctx context.Context, query string, arg any) ([]model.Attendance, error) {
	db, err := c.g.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	defer rows.Close()

	records := []model.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning attendance")
		}
		records = append(records, a)
	}
	return records, rows.Err()
}

func (c pgAttendance) ListByEmployee(ctx context.Context, employeeID string) ([]model.Attendance, error) {
	return c.list(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE employee_id = $1 ORDER BY date DESC`, employeeID)
}

func (c pgAttendance) ListByDate(ctx context.Context, date string) ([]model.Attendance, error) {
	return c.list(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE date = $1 ORDER BY employee_id`, date)
}

func (c pgAttendance) CountByEmployee(ctx context.Context, employeeID string) (int64, error) {
	db, err := c.g.handle()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM attendance WHERE employee_id = $1`, employeeID).Scan(&n)
	return n, errors.Wrap(err, "counting attendance")
}
