package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"courtbook/internal/models"
	"courtbook/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("courtbook-test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(t.Context())
	})
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestTracingMiddleware_BookingRoute(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		c.Locals("role", models.RoleAdmin)
		return c.Next()
	})
	app.Post("/api/reservations/:id/cancel", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/reservations/42/cancel", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/reservations/:id/cancel", span.Name())
	assert.Equal(t, span.SpanContext().TraceID().String(), resp.Header.Get("X-Trace-ID"))

	attrs := spanAttrs(span)
	assert.Equal(t, "/api/reservations/:id/cancel", attrs["http.route"])
	assert.Equal(t, "/api/reservations/42/cancel", attrs["http.path"])
	assert.Equal(t, "reservations", attrs["booking.resource"])
	assert.Equal(t, "cancel", attrs["booking.action"])
	assert.Equal(t, "42", attrs["booking.resource_id"])
	assert.Equal(t, "7", attrs["user.id"])
	assert.Equal(t, "admin", attrs["user.role"])
	assert.Equal(t, "200", attrs["http.status_code"])
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracingMiddleware_SanctionsForUser(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/sanctions/users/:userId", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/sanctions/users/9", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "sanctions", attrs["booking.resource"])
	assert.Equal(t, "9", attrs["booking.target_user_id"])
	assert.NotContains(t, attrs, attribute.Key("booking.action"))
	assert.NotContains(t, attrs, attribute.Key("booking.resource_id"))
	assert.NotContains(t, attrs, attribute.Key("user.role"))
}

func TestTracingMiddleware_ServerErrorMarksSpan(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Post("/api/slots", func(c *fiber.Ctx) error {
		return errors.New("database unavailable")
	})
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return fiber.NewError(http.StatusServiceUnavailable, "draining")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/slots", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	slots := spanAttrs(spans[0])
	assert.Equal(t, "slots", slots["booking.resource"])
	assert.Equal(t, "500", slots["http.status_code"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)

	health := spanAttrs(spans[1])
	assert.NotContains(t, health, attribute.Key("booking.resource"))
	assert.Equal(t, "503", health["http.status_code"])
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
