package middleware

import (
	"errors"
	"fmt"
	"strings"

	"courtbook/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request. The span is renamed to
// the matched route once the handler chain has run, and carries the booking
// resource, its path ids and the caller's role.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		ctx, span := observability.Tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.ip", c.IP()),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Set("X-Trace-ID", traceID)
		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprintf("%v", requestID)))
		}
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		span.SetAttributes(bookingRouteAttributes(c, route)...)

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		if userID := c.Locals("userID"); userID != nil {
			span.SetAttributes(attribute.String("user.id", fmt.Sprintf("%v", userID)))
		}
		if role := c.Locals("role"); role != nil {
			span.SetAttributes(attribute.String("user.role", fmt.Sprintf("%v", role)))
		}

		return err
	}
}

// bookingRouteAttributes maps /api/<resource>/:id[/<action>] routes onto
// span attributes.
func bookingRouteAttributes(c *fiber.Ctx, route string) []attribute.KeyValue {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok {
		return nil
	}
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if segments[0] == "" || segments[0] == "swagger" {
		return nil
	}

	attrs := []attribute.KeyValue{attribute.String("booking.resource", segments[0])}
	if last := segments[len(segments)-1]; len(segments) > 1 && !strings.HasPrefix(last, ":") {
		attrs = append(attrs, attribute.String("booking.action", last))
	}
	if id := c.Params("id"); id != "" {
		attrs = append(attrs, attribute.String("booking.resource_id", id))
	}
	if userID := c.Params("userId"); userID != "" {
		attrs = append(attrs, attribute.String("booking.target_user_id", userID))
	}
	return attrs
}
