package tiers

import "strings"

// Keyword tables for the prompt heuristic. The classifier only produces
// labels that exist in complexityTable.
var (
	expertKeywords = []string{
		"prove", "theorem", "formal verification", "distributed consensus",
		"architect", "architecture", "research", "whitepaper",
	}
	complexKeywords = []string{
		"analyze", "analyse", "design", "implement", "optimize", "optimise",
		"refactor", "derive", "comprehensive", "detailed", "step by step",
		"compare and contrast", "trade-off", "tradeoff",
	}
	creativeKeywords = []string{
		"write a story", "poem", "creative", "brainstorm", "imagine",
	}
)

// ClassifyPrompt assigns a complexity label to a raw prompt. It is a cheap
// lexical heuristic used only when the caller supplies no label; callers
// with real complexity signals should pass them through request metadata.
func ClassifyPrompt(prompt string) string {
	lowered := strings.ToLower(strings.TrimSpace(prompt))
	words := len(strings.Fields(lowered))

	for _, kw := range expertKeywords {
		if strings.Contains(lowered, kw) {
			return "expert"
		}
	}
	for _, kw := range complexKeywords {
		if strings.Contains(lowered, kw) {
			return "complex"
		}
	}
	for _, kw := range creativeKeywords {
		if strings.Contains(lowered, kw) {
			return "creative"
		}
	}

	switch {
	case words == 0:
		return "trivial"
	case words <= 8:
		return "simple"
	case words > 150:
		return "high"
	default:
		return "medium"
	}
}
