package evaluator

import (
	"context"
	"strings"
)

// Heuristic scores responses lexically, for deployments without a judge
// model. It rewards responses that engage with the query's terms and
// penalizes empty or refusal-shaped answers.
type Heuristic struct{}

// NewHeuristic creates the lexical evaluator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var refusalMarkers = []string{
	"i can't help",
	"i cannot help",
	"i'm not able to",
	"as an ai",
}

// Score returns a rough quality estimate in [0,1]. It never errors.
func (h *Heuristic) Score(_ context.Context, query, response string) (float64, error) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return 0.0, nil
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			return 0.2, nil
		}
	}

	// Term overlap between query and response.
	queryTerms := map[string]bool{}
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if len(term) > 3 {
			queryTerms[term] = true
		}
	}
	matched := 0
	for _, term := range strings.Fields(lower) {
		if queryTerms[term] {
			matched++
			delete(queryTerms, term)
		}
	}

	score := 0.5
	if len(queryTerms)+matched > 0 {
		score += 0.3 * float64(matched) / float64(len(queryTerms)+matched)
	}

	// Very short answers to non-trivial questions are suspect.
	if len(trimmed) < 20 && len(query) > 80 {
		score -= 0.2
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score, nil
}
