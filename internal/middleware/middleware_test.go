package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoggingMiddlewareRecordsRequest(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := chiMiddleware.RequestID(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != log.InfoLevel {
		t.Fatalf("expected info level, got %v", entry.Level)
	}
	if entry.Data["status"] != http.StatusTeapot || entry.Data["path"] != "/api/v1/tasks" || entry.Data["bytes"] != 3 {
		t.Fatalf("unexpected fields %#v", entry.Data)
	}
	if id, _ := entry.Data["request_id"].(string); id == "" {
		t.Fatalf("expected request id, got %#v", entry.Data["request_id"])
	}
}

func TestLoggingMiddlewareWarnsOnServerError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/plan", nil))

	if entry := hook.LastEntry(); entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected warn entry, got %#v", entry)
	}
}

func TestLoggingMiddlewareDefaultsStatusOK(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if entry := hook.LastEntry(); entry == nil || entry.Data["status"] != http.StatusOK {
		t.Fatalf("expected status 200 in log, got %#v", entry)
	}
}

func TestJSONHeaderMiddleware(t *testing.T) {
	h := JSONHeaderMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestRequestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := RequestTimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !ok || time.Until(deadline) > 50*time.Millisecond {
		t.Fatalf("expected a deadline within 50ms, got ok=%v deadline=%v", ok, deadline)
	}

	h = RequestTimeoutMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ok {
		t.Fatal("zero timeout must not set a deadline")
	}
}

func TestRequestTimeoutMiddlewareKeepsShorterDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	want, _ := ctx.Deadline()

	var got time.Time
	h := RequestTimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	if !got.Equal(want) {
		t.Fatalf("expected the caller's deadline %v to be kept, got %v", want, got)
	}
}
