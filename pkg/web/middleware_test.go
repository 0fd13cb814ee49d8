package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fsandov/go-rollbar/pkg/client"
	"github.com/fsandov/go-rollbar/pkg/rollbar"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockTransport struct {
	roundTripFunc func(*http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.roundTripFunc(req)
}

type sink struct {
	mu    sync.Mutex
	items []map[string]any
}

func (s *sink) notifier() *rollbar.Notifier {
	return rollbar.New("tok",
		rollbar.WithBlocking(),
		rollbar.WithClientOptions(client.WithTransport(&mockTransport{
			roundTripFunc: func(req *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(req.Body)
				var body map[string]any
				_ = json.Unmarshal(raw, &body)
				s.mu.Lock()
				s.items = append(s.items, body["data"].(map[string]any))
				s.mu.Unlock()
				return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader([]byte(`{"err":0}`)))}, nil
			},
		})),
	)
}

func (s *sink) all() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.items...)
}

func message(data map[string]any) map[string]any {
	return data["body"].(map[string]any)["message"].(map[string]any)
}

func setupEngine(middlewares ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	for _, mw := range middlewares {
		e.Use(mw)
	}
	e.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return e
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	e := setupEngine(RequestIDMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	e.ServeHTTP(w, req)

	id := w.Header().Get("X-Request-ID")
	if len(id) < 20 {
		t.Errorf("X-Request-ID looks too short: %q", id)
	}
}

func TestRequestIDMiddleware_PreservesExisting(t *testing.T) {
	e := setupEngine(RequestIDMiddleware())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "my-custom-id")
	e.ServeHTTP(w, req)

	if id := w.Header().Get("X-Request-ID"); id != "my-custom-id" {
		t.Errorf("expected preserved X-Request-ID 'my-custom-id', got %q", id)
	}
}

func TestRecoveryReportsPanic(t *testing.T) {
	s := &sink{}
	e := gin.New()
	e.Use(RequestIDMiddleware(), Recovery(s.notifier()))
	e.GET("/orders/:id", func(c *gin.Context) {
		panic("nil order")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/7", nil)
	req.Header.Set("X-Request-ID", "req-1")
	e.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", w.Code)
	}
	items := s.all()
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	data := items[0]
	if data["level"] != "critical" || data["title"] != "panic: nil order" {
		t.Errorf("unexpected item %v", data)
	}
	if data["context"] != "GET /orders/:id" {
		t.Errorf("expected route as context, got %v", data["context"])
	}
	msg := message(data)
	if msg["request_id"] != "req-1" || msg["path"] != "/orders/7" || msg["route"] != "/orders/:id" {
		t.Errorf("unexpected custom fields %v", msg)
	}
	if stack, _ := msg["stack"].(string); !strings.Contains(stack, "goroutine") {
		t.Error("expected stack trace in custom data")
	}
}

func TestRecoveryPassesThrough(t *testing.T) {
	s := &sink{}
	e := setupEngine(Recovery(s.notifier()))

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(s.all()) != 0 {
		t.Error("expected no items for a healthy request")
	}
}

func TestErrorReporter(t *testing.T) {
	s := &sink{}
	e := gin.New()
	e.Use(ErrorReporter(s.notifier()))
	e.POST("/charge", func(c *gin.Context) {
		_ = c.Error(errors.New("card declined")).SetMeta("visa")
		c.Status(http.StatusPaymentRequired)
	})

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/charge", nil))

	items := s.all()
	if len(items) != 1 {
		t.Fatalf("expected one item, got %d", len(items))
	}
	data := items[0]
	if data["level"] != "error" || data["title"] != "card declined" {
		t.Errorf("unexpected item %v", data)
	}
	msg := message(data)
	if msg["status"] != float64(http.StatusPaymentRequired) || msg["meta"] != "visa" {
		t.Errorf("unexpected custom fields %v", msg)
	}
}

func TestErrorReporterUnencodableMeta(t *testing.T) {
	s := &sink{}
	e := gin.New()
	e.Use(ErrorReporter(s.notifier()))
	e.GET("/stream", func(c *gin.Context) {
		_ = c.Error(errors.New("stream closed")).SetMeta(make(chan int))
		c.Status(http.StatusInternalServerError)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	items := s.all()
	if len(items) != 1 {
		t.Fatalf("expected the error to be reported, got %d items", len(items))
	}
	if meta, ok := message(items[0])["meta"].(string); !ok || meta == "" {
		t.Errorf("expected meta as text, got %v", message(items[0])["meta"])
	}
}

func TestErrorReporterLogsFailedReport(t *testing.T) {
	core, obs := observer.New(zapcore.ErrorLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	s := &sink{}
	n := s.notifier()
	n.Close()
	e := gin.New()
	e.Use(ErrorReporter(n))
	e.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusInternalServerError)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	if obs.FilterMessage("failed to report request error").Len() != 1 {
		t.Error("expected the failed report to be logged")
	}
	if len(s.all()) != 0 {
		t.Error("expected nothing sent by a closed notifier")
	}
}
