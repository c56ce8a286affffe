package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	redisClient *redis.Client
	providers   []string
}

// NewHealthHandler creates a health check handler. redisClient may be nil
// when no Redis-backed component is configured.
func NewHealthHandler(redisClient *redis.Client, providers []string) *HealthHandler {
	return &HealthHandler{redisClient: redisClient, providers: providers}
}

// HealthCheck returns the health status of the service and its dependencies.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	redisStatus := h.checkRedis()

	providerStatus := "healthy"
	if len(h.providers) == 0 {
		providerStatus = "unconfigured"
	}

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	if redisStatus == "unhealthy" || providerStatus != "healthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"redis":     redisStatus,
			"providers": providerStatus,
		},
		"configured_providers": h.providers,
	})
}

func (h *HealthHandler) checkRedis() string {
	if h.redisClient == nil {
		return "disabled"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
