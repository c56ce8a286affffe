package api

import (
	"errors"
	"fmt"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/services/cascade"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// CascadeHandler exposes the cascade engine over HTTP. Handlers are thin:
// parse, delegate, map errors.
type CascadeHandler struct {
	service *cascade.Service
}

// NewCascadeHandler creates the handler over a cascade service.
func NewCascadeHandler(service *cascade.Service) *CascadeHandler {
	return &CascadeHandler{service: service}
}

// EscalateRequest is the body of POST /v1/cascade/escalate.
type EscalateRequest struct {
	Query              string  `json:"query"`
	QualityRequirement float64 `json:"quality_requirement,omitempty"`
}

// ConsensusRequest is the body of POST /v1/cascade/consensus.
type ConsensusRequest struct {
	Query              string                   `json:"query"`
	Models             []string                 `json:"models"`
	ConsensusThreshold float64                  `json:"consensus_threshold,omitempty"`
	AggregationMethod  models.AggregationMethod `json:"aggregation_method,omitempty"`
}

// AdaptiveRequest is the body of POST /v1/cascade/adaptive.
type AdaptiveRequest struct {
	Query              string  `json:"query"`
	Category           string  `json:"category"`
	QualityRequirement float64 `json:"quality_requirement,omitempty"`
}

// Execute handles POST /v1/cascade/execute.
func (h *CascadeHandler) Execute(c *fiber.Ctx) error {
	reqID := requestID(c)
	fiberlog.Infof("[%s] starting cascade execute request", reqID)

	var req models.ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	result, err := h.service.Execute(c.UserContext(), req)
	if err != nil {
		return h.mapError(c, reqID, err)
	}
	return c.JSON(result)
}

// Escalate handles POST /v1/cascade/escalate and returns the full attempt
// history.
func (h *CascadeHandler) Escalate(c *fiber.Ctx) error {
	reqID := requestID(c)
	fiberlog.Infof("[%s] starting escalation-tracked request", reqID)

	var req EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	report, err := h.service.ExecuteWithEscalationTracking(c.UserContext(), req.Query, req.QualityRequirement)
	if err != nil {
		return h.mapError(c, reqID, err)
	}
	return c.JSON(report)
}

// Consensus handles POST /v1/cascade/consensus.
func (h *CascadeHandler) Consensus(c *fiber.Ctx) error {
	reqID := requestID(c)
	fiberlog.Infof("[%s] starting consensus request", reqID)

	var req ConsensusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	result, err := h.service.ExecuteWithConsensus(c.UserContext(), req.Query, req.Models, req.ConsensusThreshold, req.AggregationMethod)
	if err != nil {
		return h.mapError(c, reqID, err)
	}
	return c.JSON(result)
}

// Adaptive handles POST /v1/cascade/adaptive.
func (h *CascadeHandler) Adaptive(c *fiber.Ctx) error {
	reqID := requestID(c)
	fiberlog.Infof("[%s] starting adaptive routing request", reqID)

	var req AdaptiveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}
	if req.Category == "" {
		return badRequest(c, "category is required")
	}

	result, err := h.service.ExecuteAdaptive(c.UserContext(), req.Query, req.Category, req.QualityRequirement)
	if err != nil {
		return h.mapError(c, reqID, err)
	}
	return c.JSON(result)
}

// UpdatePolicies handles PUT /v1/cascade/policies: a partial policy map is
// merged into the live policy set.
func (h *CascadeHandler) UpdatePolicies(c *fiber.Ctx) error {
	reqID := requestID(c)

	var partial map[string]any
	if err := c.BodyParser(&partial); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %s", err.Error()))
	}

	if err := h.service.SetPolicies(partial); err != nil {
		return h.mapError(c, reqID, err)
	}
	fiberlog.Infof("[%s] policies updated", reqID)
	return c.JSON(h.service.Policies())
}

// GetPolicies handles GET /v1/cascade/policies.
func (h *CascadeHandler) GetPolicies(c *fiber.Ctx) error {
	return c.JSON(h.service.Policies())
}

// Recommendations handles GET /v1/cascade/recommendations.
func (h *CascadeHandler) Recommendations(c *fiber.Ctx) error {
	return c.JSON(h.service.GetRoutingRecommendations())
}

func (h *CascadeHandler) mapError(c *fiber.Ctx, reqID string, err error) error {
	var cascadeErr *models.CascadeError
	if errors.As(err, &cascadeErr) {
		fiberlog.Warnf("[%s] request failed: %s (%s)", reqID, cascadeErr.Message, cascadeErr.Type)
		return c.Status(cascadeErr.StatusCode()).JSON(fiber.Map{
			"error": fiber.Map{
				"type":      cascadeErr.Type,
				"message":   cascadeErr.Message,
				"retryable": cascadeErr.Retryable,
			},
		})
	}

	fiberlog.Errorf("[%s] unexpected error: %v", reqID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{
			"type":    models.ErrorTypeInternal,
			"message": "internal error",
		},
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": fiber.Map{
			"type":    models.ErrorTypeValidation,
			"message": message,
		},
	})
}

func requestID(c *fiber.Ctx) string {
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()[:8]
}
