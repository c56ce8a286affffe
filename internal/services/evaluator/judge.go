package evaluator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Egham-7/cascade-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const judgePromptTemplate = `Rate how well the answer below satisfies the question, as a single number between 0.0 and 1.0. Reply with the number only.

Question:
%s

Answer:
%s`

// LLMJudge scores responses by asking a judge model over the same transport.
// It implements the QualityEvaluator contract.
type LLMJudge struct {
	transport  models.ModelTransport
	judgeModel string
}

// NewLLMJudge creates a judge using the given model identifier.
func NewLLMJudge(transport models.ModelTransport, judgeModel string) *LLMJudge {
	return &LLMJudge{transport: transport, judgeModel: judgeModel}
}

// Score returns the judge's rating in [0,1].
func (j *LLMJudge) Score(ctx context.Context, query, response string) (float64, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, query, response)
	verdict, err := j.transport.Invoke(ctx, j.judgeModel, prompt)
	if err != nil {
		return 0, fmt.Errorf("judge model %s failed: %w", j.judgeModel, err)
	}

	score, err := parseScore(verdict)
	if err != nil {
		fiberlog.Warnf("LLMJudge: unparseable verdict %q from %s: %v", verdict, j.judgeModel, err)
		return 0, err
	}
	return score, nil
}

// parseScore extracts the first number from a verdict and clamps it to
// [0,1]. Judges occasionally wrap the number in prose despite instructions.
func parseScore(verdict string) (float64, error) {
	for _, field := range strings.Fields(verdict) {
		cleaned := strings.Trim(field, ".,;:()[]")
		score, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			continue
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		return score, nil
	}
	return 0, fmt.Errorf("no numeric score in verdict")
}
