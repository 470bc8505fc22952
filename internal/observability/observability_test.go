package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "POST", 201, 10*time.Millisecond)
	m.RecordRequest("/tickets", "POST", 201, 30*time.Millisecond)
	m.RecordRequest("/queue", "GET", 200, time.Millisecond)
	m.RecordError("/tickets", "POST", "VALIDATION_FAILED")
	m.Inc("tickets_created")

	snap := m.Snapshot()
	if len(snap.Requests) != 2 {
		t.Fatalf("expected 2 request rows, got %d", len(snap.Requests))
	}
	if snap.Requests[0].Path != "/queue" {
		t.Fatalf("expected sorted rows, got %+v", snap.Requests)
	}
	if got := snap.Requests[1]; got.Count != 2 || got.AvgMS != 20 {
		t.Fatalf("unexpected ticket stats %+v", got)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Code != "VALIDATION_FAILED" {
		t.Fatalf("unexpected errors %+v", snap.Errors)
	}
	if snap.Counters["tickets_created"] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Second)
	m.RecordError("/", "GET", "X")
	m.Inc("x")
	if snap := m.Snapshot(); len(snap.Requests) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}

func TestRequestLoggerUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m, func(*fiber.Ctx) string { return "demo" }))
	app.Get("/tickets/:id", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })

	for _, id := range []string{"a", "b"} {
		if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/tickets/"+id, nil)); err != nil {
			t.Fatalf("request: %v", err)
		}
	}

	snap := m.Snapshot()
	if len(snap.Requests) != 1 || snap.Requests[0].Path != "/tickets/:id" || snap.Requests[0].Count != 2 {
		t.Fatalf("unexpected stats %+v", snap.Requests)
	}
}
