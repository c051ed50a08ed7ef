package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	l, err := New("debug")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected debug enabled")
	}

	l, err = New("nonsense")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if l.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("expected info fallback")
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New()
	app.Use(RequestLogger(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "nope") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("ok status: %v", err)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status: %v", err)
	}

	entries := logs.FilterMessage("completed HTTP request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if got := entries[1].ContextMap()["status_code"]; got != int64(404) {
		t.Fatalf("unexpected status field: %v", got)
	}
}

func TestPanicHandler(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: PanicHandler(zap.New(core))}))
	app.Get("/boom", func(c *fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500: %v", err)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}
