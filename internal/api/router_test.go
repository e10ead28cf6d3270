package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"

	"github.com/taskmanager/task-api/internal/core/service"
	"github.com/taskmanager/task-api/internal/infrastructure/db/jsonfile"
	"github.com/taskmanager/task-api/internal/infrastructure/http/handlers"
)

type testServer struct {
	t     *testing.T
	e     *echo.Echo
	clock *abtime.ManualTime
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := jsonfile.Open(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	clock := abtime.NewManualAtTime(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	users := jsonfile.NewUserRepository(st)
	tokens := service.NewTokenManager("router-test-secret", time.Hour, clock)

	e := NewRouter(Deps{
		AuthService:   service.NewAuthService(users, tokens, 4, clock, zerolog.Nop()),
		TaskService:   service.NewTaskService(jsonfile.NewTaskRepository(st), users, zerolog.Nop(), service.WithClock(clock)),
		TokenVerifier: tokens,
		HealthChecks:  map[string]handlers.Check{"store": st.Ping},
		Registry:      prometheus.NewRegistry(),
		Logger:        zerolog.Nop(),
	})
	return &testServer{t: t, e: e, clock: clock}
}

func (s *testServer) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			s.t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func (s *testServer) signup(username string) string {
	s.t.Helper()
	rec, body := s.do(http.MethodPost, "/api/auth/signup", "", `{"username":"`+username+`","password":"pw-`+username+`"}`)
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("signup %s: expected 201, got %d: %s", username, rec.Code, rec.Body.String())
	}
	return body["token"].(string)
}

func TestRouter_BuyMilkScenario(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")

	rec, task := s.do(http.MethodPost, "/api/tasks", alice, `{"title":"Buy milk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if task["completed"] != false || task["description"] != "" {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	id := task["id"].(string)

	rec, body := s.do(http.MethodPatch, "/api/tasks/"+id+"/toggle", bob, "")
	if rec.Code != http.StatusNotFound || body["message"] != "Task not found" {
		t.Fatalf("toggle as bob: expected 404, got %d: %s", rec.Code, rec.Body.String())
	}

	s.clock.Advance(time.Second)
	rec, body = s.do(http.MethodPatch, "/api/tasks/"+id+"/toggle", alice, "")
	if rec.Code != http.StatusOK || body["completed"] != true {
		t.Fatalf("toggle as alice: expected 200 completed, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["updatedAt"] == task["updatedAt"] {
		t.Fatalf("toggle must refresh updatedAt")
	}

	rec, _ = s.do(http.MethodDelete, "/api/tasks/"+id, alice, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}

	rec, _ = s.do(http.MethodGet, "/api/tasks/"+id, alice, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestRouter_ConcurrentTogglesAreNotLost(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	_, task := s.do(http.MethodPost, "/api/tasks", alice, `{"title":"shared"}`)
	id := task["id"].(string)

	const toggles = 10
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPatch, "/api/tasks/"+id+"/toggle", nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+alice)
			rec := httptest.NewRecorder()
			s.e.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("toggle: got %d %s", rec.Code, rec.Body.String())
			}
		}()
	}
	wg.Wait()

	rec, body := s.do(http.MethodGet, "/api/tasks/"+id, alice, "")
	if rec.Code != http.StatusOK || body["completed"] != false {
		t.Fatalf("after %d toggles expected completed=false, got %d %s", toggles, rec.Code, rec.Body.String())
	}
}

func TestRouter_TokenErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("alice")

	rec, body := s.do(http.MethodGet, "/api/tasks", "", "")
	if rec.Code != http.StatusUnauthorized || body["message"] != "Access denied. No token provided." {
		t.Fatalf("no token: got %d %s", rec.Code, rec.Body.String())
	}

	rec, body = s.do(http.MethodGet, "/api/tasks", token+"x", "")
	if rec.Code != http.StatusForbidden || body["message"] != "Invalid token" {
		t.Fatalf("tampered token: got %d %s", rec.Code, rec.Body.String())
	}

	s.clock.Advance(time.Hour + time.Second)
	rec, body = s.do(http.MethodGet, "/api/tasks", token, "")
	if rec.Code != http.StatusForbidden || body["message"] != "Invalid token" {
		t.Fatalf("expired token: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_AuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice")

	rec, body := s.do(http.MethodPost, "/api/auth/signup", "", `{"username":"alice","password":"other"}`)
	if rec.Code != http.StatusBadRequest || body["message"] != "Username already exists" {
		t.Fatalf("duplicate signup: got %d %s", rec.Code, rec.Body.String())
	}

	_, wrongPw := s.do(http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"nope"}`)
	_, noUser := s.do(http.MethodPost, "/api/auth/login", "", `{"username":"mallory","password":"nope"}`)
	if wrongPw["message"] != noUser["message"] || wrongPw["message"] != "Invalid username or password" {
		t.Fatalf("login errors differ: %v vs %v", wrongPw, noUser)
	}

	rec, body = s.do(http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"pw-alice"}`)
	if rec.Code != http.StatusOK || body["token"] == "" {
		t.Fatalf("login: got %d %s", rec.Code, rec.Body.String())
	}
	user := body["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestRouter_ListIsScopedAndFiltered(t *testing.T) {
	s := newTestServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob")

	s.do(http.MethodPost, "/api/tasks", alice, `{"title":"one"}`)
	s.clock.Advance(time.Millisecond)
	_, second := s.do(http.MethodPost, "/api/tasks", alice, `{"title":"two"}`)
	s.do(http.MethodPost, "/api/tasks", bob, `{"title":"bob's"}`)
	s.do(http.MethodPut, "/api/tasks/"+second["id"].(string), alice, `{"completed":true}`)

	var list []map[string]any
	rec, _ := s.do(http.MethodGet, "/api/tasks", alice, "")
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(list) != 2 || list[0]["title"] != "one" || list[1]["title"] != "two" {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec, _ = s.do(http.MethodGet, "/api/tasks/status?completed=true", alice, "")
	list = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(list) != 1 || list[0]["title"] != "two" {
		t.Fatalf("unexpected filtered list: %+v", list)
	}

	rec, body := s.do(http.MethodGet, "/api/tasks/status", alice, "")
	if rec.Code != http.StatusBadRequest || body["message"] == "" {
		t.Fatalf("missing flag: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ValidationAndHealth(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("alice")

	rec, body := s.do(http.MethodPost, "/api/tasks", token, `{"description":"no title"}`)
	if rec.Code != http.StatusBadRequest || body["message"] != "title is required" {
		t.Fatalf("missing title: got %d %s", rec.Code, rec.Body.String())
	}

	rec, body = s.do(http.MethodGet, "/health/ready", "", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("readiness: got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "taskmanager_requests_total") {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound || body["message"] == "" {
		t.Fatalf("unknown route: got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusCode(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if got := statusCode(c, context.Canceled); got != http.StatusInternalServerError {
		t.Fatalf("unknown error: got %d", got)
	}
	if got := statusCode(c, echo.ErrMethodNotAllowed); got != http.StatusMethodNotAllowed {
		t.Fatalf("echo error: got %d", got)
	}
}
