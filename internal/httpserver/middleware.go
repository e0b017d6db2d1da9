package httpserver

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ncecere/readaloud/internal/observability"
)

// routePattern prefers the registered pattern so /audio/:name stays one series.
func routePattern(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func recordRequests(obs *observability.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		obs.RecordHTTPRequest(c.UserContext(), c.Method(), routePattern(c), c.Response().StatusCode(), time.Since(start))
		return err
	}
}

func traceRequests() fiber.Handler {
	tracer := otel.Tracer("github.com/ncecere/readaloud/internal/httpserver")
	return func(c *fiber.Ctx) error {
		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()
		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", routePattern(c)),
			attribute.Int("http.status_code", status),
		)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
