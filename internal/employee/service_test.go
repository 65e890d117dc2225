package employee

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hrms-lite/hrms/internal/apperr"
	"github.com/hrms-lite/hrms/internal/metrics"
	"github.com/hrms-lite/hrms/internal/model"
	"github.com/hrms-lite/hrms/internal/queue"
	"github.com/hrms-lite/hrms/internal/store"
)

// stepClock returns a clock advancing one minute per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Memory) {
	t.Helper()
	gw := store.NewMemory()
	if err := gw.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return NewService(gw.Employees(), append([]Option{WithClock(stepClock())}, opts...)...), gw
}

func ann() model.Employee {
	return model.Employee{EmployeeID: "E1", FullName: "Ann Lee", Email: "ann@co.com", Department: "Eng"}
}

func TestCreateStampsAndTrims(t *testing.T) {
	svc, _ := newTestService(t)
	in := ann()
	in.FullName = "  Ann Lee  "

	got, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.FullName != "Ann Lee" {
		t.Errorf("FullName = %q, want trimmed", got.FullName)
	}
	if got.CreatedAt.IsZero() || got.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want UTC timestamp", got.CreatedAt)
	}
}

func TestCreateConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, ann()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name    string
		in      model.Employee
		wantMsg string
	}{
		{
			name:    "same id",
			in:      model.Employee{EmployeeID: "E1", FullName: "B", Email: "b@co.com", Department: "Ops"},
			wantMsg: "Employee ID 'E1' already exists",
		},
		{
			name:    "same email",
			in:      model.Employee{EmployeeID: "E2", FullName: "B", Email: "ann@co.com", Department: "Ops"},
			wantMsg: "Email 'ann@co.com' already registered",
		},
		{
			name:    "both collide reports id first",
			in:      ann(),
			wantMsg: "Employee ID 'E1' already exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			if !apperr.Is(err, apperr.Conflict) {
				t.Fatalf("err = %v, want Conflict", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCreateInvalidNeverTouchesStore(t *testing.T) {
	svc, gw := newTestService(t)
	in := ann()
	in.Email = "not-an-email"

	if _, err := svc.Create(context.Background(), in); !apperr.Is(err, apperr.Invalid) {
		t.Fatalf("err = %v, want Invalid", err)
	}
	if n, _ := gw.Employees().Count(context.Background()); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestCreateConcurrentSameID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, ann())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.Is(err, apperr.Conflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != callers-1 {
		t.Errorf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, callers-1)
	}
}

// racingCollection hides existing rows from the pre-checks so the insert
// reaches the unique index.
type racingCollection struct {
	store.EmployeeCollection
}

func (racingCollection) FindByID(context.Context, string) (*model.Employee, error) {
	return nil, nil
}

func (racingCollection) FindByEmail(context.Context, string) (*model.Employee, error) {
	return nil, nil
}

func TestCreateIndexRejectionIsConflict(t *testing.T) {
	gw := store.NewMemory()
	_ = gw.Connect(context.Background())
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(racingCollection{gw.Employees()}, WithMetrics(m))
	ctx := context.Background()

	if _, err := svc.Create(ctx, ann()); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	other := ann()
	other.EmployeeID = "E2"
	_, err := svc.Create(ctx, other)
	if !apperr.Is(err, apperr.Conflict) || err.Error() != "Email 'ann@co.com' already registered" {
		t.Fatalf("err = %v, want email Conflict", err)
	}
	if got := testutil.ToFloat64(m.Conflicts.WithLabelValues(store.IndexEmail)); got != 1 {
		t.Errorf("email conflicts = %v, want 1", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, id := range []string{"E1", "E2", "E3"} {
		e := ann()
		e.EmployeeID, e.Email = id, id+"@co.com"
		if _, err := svc.Create(ctx, e); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, e := range list {
		ids = append(ids, e.EmployeeID)
	}
	if len(ids) != 3 || ids[0] != "E3" || ids[1] != "E2" || ids[2] != "E1" {
		t.Errorf("order = %v, want [E3 E2 E1]", ids)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	svc, _ := newTestService(t)
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil {
		t.Error("List returned nil slice")
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, _ := svc.Create(ctx, ann())
	bob := model.Employee{EmployeeID: "E2", FullName: "Bob", Email: "bob@co.com", Department: "Ops"}
	if _, err := svc.Create(ctx, bob); err != nil {
		t.Fatalf("Create bob: %v", err)
	}

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Update(ctx, "E404", model.EmployeePatch{FullName: model.Some("X")})
		if !apperr.Is(err, apperr.NotFound) {
			t.Errorf("err = %v, want NotFound", err)
		}
	})
	t.Run("empty patch", func(t *testing.T) {
		_, err := svc.Update(ctx, "E1", model.EmployeePatch{})
		if !apperr.Is(err, apperr.BadRequest) {
			t.Errorf("err = %v, want BadRequest", err)
		}
	})
	t.Run("own email", func(t *testing.T) {
		got, err := svc.Update(ctx, "E1", model.EmployeePatch{Email: model.Some("ann@co.com")})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if got != created {
			t.Errorf("record changed: %+v, want %+v", got, created)
		}
	})
	t.Run("other employee's email", func(t *testing.T) {
		_, err := svc.Update(ctx, "E1", model.EmployeePatch{Email: model.Some("bob@co.com")})
		if !apperr.Is(err, apperr.Conflict) {
			t.Errorf("err = %v, want Conflict", err)
		}
	})
	t.Run("partial leaves other fields", func(t *testing.T) {
		got, err := svc.Update(ctx, "E1", model.EmployeePatch{Department: model.Some(" Research ")})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		want := created
		want.Department = "Research"
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
	t.Run("blank value rejected", func(t *testing.T) {
		_, err := svc.Update(ctx, "E1", model.EmployeePatch{FullName: model.Some("  ")})
		if !apperr.Is(err, apperr.Invalid) {
			t.Errorf("err = %v, want Invalid", err)
		}
	})
}

func TestDeletePublishesEvent(t *testing.T) {
	q := queue.NewInMemory(1)
	svc, _ := newTestService(t, WithPublisher(q))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Create(ctx, ann()); err != nil {
		t.Fatalf("Create: %v", err)
	}

	msg, err := svc.Delete(ctx, "E1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if msg != "Employee 'E1' deleted successfully" {
		t.Errorf("message = %q", msg)
	}
	if _, err := svc.Delete(ctx, "E1"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("second Delete = %v, want NotFound", err)
	}

	messages, _ := q.Consume(ctx)
	select {
	case got := <-messages:
		var body DeletedEvent
		if err := json.Unmarshal(got.Body, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if got.Type != queue.TypeEmployeeDeleted || body.EmployeeID != "E1" {
			t.Errorf("event = %s %+v", got.Type, body)
		}
	case <-ctx.Done():
		t.Fatal("no event published")
	}
}

func TestExistsAndCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Create(ctx, ann())

	if ok, err := svc.Exists(ctx, "E1"); err != nil || !ok {
		t.Errorf("Exists(E1) = %v, %v", ok, err)
	}
	if ok, err := svc.Exists(ctx, "E2"); err != nil || ok {
		t.Errorf("Exists(E2) = %v, %v", ok, err)
	}
	if n, err := svc.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if _, err := svc.Get(ctx, "E2"); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("Get(E2) = %v, want NotFound", err)
	}
}
