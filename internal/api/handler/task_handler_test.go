package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskmanager/task-api/internal/api/middleware"
	"github.com/taskmanager/task-api/internal/core/domain"
	"github.com/taskmanager/task-api/internal/core/ports"
)

type stubTaskService struct {
	listFn   func(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error)
	getFn    func(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error)
	createFn func(ctx context.Context, id domain.Identity, in ports.CreateTaskInput) (*domain.Task, error)
	updateFn func(ctx context.Context, id domain.Identity, taskID string, p domain.TaskPatch) (*domain.Task, error)
	toggleFn func(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error)
	deleteFn func(ctx context.Context, id domain.Identity, taskID string) error
}

func (s *stubTaskService) List(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
	return s.listFn(ctx, id, completed)
}

func (s *stubTaskService) Get(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
	return s.getFn(ctx, id, taskID)
}

func (s *stubTaskService) Create(ctx context.Context, id domain.Identity, in ports.CreateTaskInput) (*domain.Task, error) {
	return s.createFn(ctx, id, in)
}

func (s *stubTaskService) Update(ctx context.Context, id domain.Identity, taskID string, p domain.TaskPatch) (*domain.Task, error) {
	return s.updateFn(ctx, id, taskID, p)
}

func (s *stubTaskService) Toggle(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
	return s.toggleFn(ctx, id, taskID)
}

func (s *stubTaskService) Delete(ctx context.Context, id domain.Identity, taskID string) error {
	return s.deleteFn(ctx, id, taskID)
}

var caller = domain.Identity{UserID: "user-a", Username: "alice"}

func sampleTask() *domain.Task {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.Task{
		ID:        "task-1",
		UserID:    caller.UserID,
		Title:     "Buy milk",
		CreatedAt: created,
		UpdatedAt: created.Add(1500 * time.Millisecond),
	}
}

// newTaskContext builds a request context as the Auth middleware would leave it.
func newTaskContext(method, target, body string, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.IdentityKey, caller)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	return c, rec
}

func TestTaskHandler_List(t *testing.T) {
	var gotCompleted *bool
	stub := &stubTaskService{
		listFn: func(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
			if id != caller {
				t.Fatalf("unexpected identity: %+v", id)
			}
			gotCompleted = completed
			return []*domain.Task{sampleTask()}, nil
		},
	}
	c, rec := newTaskContext(http.MethodGet, "/api/tasks", "")

	if err := NewTaskHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotCompleted != nil {
		t.Fatalf("expected no completion filter, got %v", *gotCompleted)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 task, got %d", len(resp))
	}
	got := resp[0]
	if got["id"] != "task-1" || got["userId"] != "user-a" || got["title"] != "Buy milk" {
		t.Fatalf("unexpected task payload: %+v", got)
	}
	if got["description"] != "" || got["completed"] != false {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got["createdAt"] != "2026-03-01T09:00:00.000Z" || got["updatedAt"] != "2026-03-01T09:00:01.500Z" {
		t.Fatalf("unexpected timestamps: %v %v", got["createdAt"], got["updatedAt"])
	}
}

func TestTaskHandler_List_EmptyIsArray(t *testing.T) {
	stub := &stubTaskService{
		listFn: func(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
			return nil, nil
		},
	}
	c, rec := newTaskContext(http.MethodGet, "/api/tasks", "")

	if err := NewTaskHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestTaskHandler_List_CompletedFilter(t *testing.T) {
	var gotCompleted *bool
	stub := &stubTaskService{
		listFn: func(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
			gotCompleted = completed
			return nil, nil
		},
	}
	c, _ := newTaskContext(http.MethodGet, "/api/tasks?completed=true", "")

	if err := NewTaskHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if gotCompleted == nil || !*gotCompleted {
		t.Fatalf("expected completed=true filter, got %v", gotCompleted)
	}

	c, _ = newTaskContext(http.MethodGet, "/api/tasks?completed=maybe", "")
	if err := NewTaskHandler(stub).List(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTaskHandler_ListByStatus(t *testing.T) {
	var gotCompleted *bool
	stub := &stubTaskService{
		listFn: func(ctx context.Context, id domain.Identity, completed *bool) ([]*domain.Task, error) {
			gotCompleted = completed
			return nil, nil
		},
	}

	c, rec := newTaskContext(http.MethodGet, "/api/tasks/status?completed=false", "")
	if err := NewTaskHandler(stub).ListByStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotCompleted == nil || *gotCompleted {
		t.Fatalf("expected completed=false filter, got %v", gotCompleted)
	}

	for _, target := range []string{"/api/tasks/status", "/api/tasks/status?completed=yes"} {
		c, _ := newTaskContext(http.MethodGet, target, "")
		if err := NewTaskHandler(stub).ListByStatus(c); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", target, err)
		}
	}
}

func TestTaskHandler_Get_NotFound(t *testing.T) {
	stub := &stubTaskService{
		getFn: func(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
			if taskID != "task-9" {
				t.Fatalf("unexpected task id %q", taskID)
			}
			return nil, domain.ErrTaskNotFound
		},
	}
	c, _ := newTaskContext(http.MethodGet, "/api/tasks/task-9", "", "id", "task-9")

	err := NewTaskHandler(stub).Get(c)
	if !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskHandler_Create(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(ctx context.Context, id domain.Identity, in ports.CreateTaskInput) (*domain.Task, error) {
			if id != caller {
				t.Fatalf("unexpected identity: %+v", id)
			}
			if in.Title != "Buy milk" || in.Description != "2 litres" || in.IdempotencyKey != "req-42" {
				t.Fatalf("unexpected input: %+v", in)
			}
			task := sampleTask()
			task.Description = in.Description
			return task, nil
		},
	}
	c, rec := newTaskContext(http.MethodPost, "/api/tasks", `{"title":"Buy milk","description":"2 litres"}`)
	c.Request().Header.Set("Idempotency-Key", "req-42")

	if err := NewTaskHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["description"] != "2 litres" || resp["completed"] != false {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestTaskHandler_Create_IgnoresClientOwner(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(ctx context.Context, id domain.Identity, in ports.CreateTaskInput) (*domain.Task, error) {
			if id.UserID != caller.UserID {
				t.Fatalf("owner must come from the token, got %q", id.UserID)
			}
			return sampleTask(), nil
		},
	}
	c, _ := newTaskContext(http.MethodPost, "/api/tasks", `{"title":"Buy milk","userId":"user-b"}`)

	if err := NewTaskHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestTaskHandler_Create_Invalid(t *testing.T) {
	stub := &stubTaskService{
		createFn: func(ctx context.Context, id domain.Identity, in ports.CreateTaskInput) (*domain.Task, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{"description":"x"}`, "title is required"},
		{"blank title", `{"title":"   "}`, "title cannot be blank"},
		{"malformed", `{"title":`, "invalid payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTaskContext(http.MethodPost, "/api/tasks", tt.body)
			err := NewTaskHandler(stub).Create(c)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestTaskHandler_Create_Unauthenticated(t *testing.T) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"title":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := NewTaskHandler(&stubTaskService{}).Create(c)
	if !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestTaskHandler_Update_PartialPatch(t *testing.T) {
	stub := &stubTaskService{
		updateFn: func(ctx context.Context, id domain.Identity, taskID string, p domain.TaskPatch) (*domain.Task, error) {
			if taskID != "task-1" {
				t.Fatalf("unexpected task id %q", taskID)
			}
			if p.Title != nil || p.Description != nil {
				t.Fatalf("omitted fields must stay nil: %+v", p)
			}
			if p.Completed == nil || !*p.Completed {
				t.Fatalf("expected completed=true, got %+v", p.Completed)
			}
			task := sampleTask()
			task.Completed = true
			return task, nil
		},
	}
	c, rec := newTaskContext(http.MethodPut, "/api/tasks/task-1", `{"completed":true}`, "id", "task-1")

	if err := NewTaskHandler(stub).Update(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestTaskHandler_Update_BlankTitle(t *testing.T) {
	stub := &stubTaskService{
		updateFn: func(ctx context.Context, id domain.Identity, taskID string, p domain.TaskPatch) (*domain.Task, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	c, _ := newTaskContext(http.MethodPut, "/api/tasks/task-1", `{"title":""}`, "id", "task-1")

	if err := NewTaskHandler(stub).Update(c); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTaskHandler_Toggle(t *testing.T) {
	stub := &stubTaskService{
		toggleFn: func(ctx context.Context, id domain.Identity, taskID string) (*domain.Task, error) {
			task := sampleTask()
			task.Completed = true
			return task, nil
		},
	}
	c, rec := newTaskContext(http.MethodPatch, "/api/tasks/task-1/toggle", "", "id", "task-1")

	if err := NewTaskHandler(stub).Toggle(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["completed"] != true {
		t.Fatalf("expected completed=true, got %v", resp["completed"])
	}
}

func TestTaskHandler_Delete(t *testing.T) {
	var deleted string
	stub := &stubTaskService{
		deleteFn: func(ctx context.Context, id domain.Identity, taskID string) error {
			deleted = taskID
			return nil
		},
	}
	c, rec := newTaskContext(http.MethodDelete, "/api/tasks/task-1", "", "id", "task-1")

	if err := NewTaskHandler(stub).Delete(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
	if deleted != "task-1" {
		t.Fatalf("deleted %q", deleted)
	}
}

func TestTaskHandler_Delete_NotFound(t *testing.T) {
	stub := &stubTaskService{
		deleteFn: func(ctx context.Context, id domain.Identity, taskID string) error {
			return domain.ErrTaskNotFound
		},
	}
	c, _ := newTaskContext(http.MethodDelete, "/api/tasks/nope", "", "id", "nope")

	if err := NewTaskHandler(stub).Delete(c); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
