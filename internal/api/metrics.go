package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// MetricsHandler serves the Prometheus registry on GET /metrics. The
// net/http promhttp handler is bridged onto fiber's fasthttp context.
func MetricsHandler(registry *prometheus.Registry) fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		Registry: registry,
	}))
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
