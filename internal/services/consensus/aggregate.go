package consensus

import (
	"strings"
	"unicode"

	"github.com/Egham-7/cascade-engine/internal/models"
	"github.com/Egham-7/cascade-engine/internal/utils"
)

// Two answers whose token sets overlap at or above this ratio are treated as
// the same answer for clustering purposes.
const clusterSimilarity = 0.8

// Topic labels are truncated to the leading words of the query.
const topicWords = 8

type cluster struct {
	members []models.IndividualResponse
	tokens  map[string]struct{} // representative token set (first member)
}

func (c *cluster) qualityWeight() float64 {
	var w float64
	for _, m := range c.members {
		w += m.QualityScore
	}
	return w
}

func (c *cluster) best() models.IndividualResponse {
	best := c.members[0]
	for _, m := range c.members[1:] {
		if m.QualityScore > best.QualityScore {
			best = m
		}
	}
	return best
}

// aggregate picks the consensus answer from the successful responses and
// computes disagreement points from the clusters that lost.
func aggregate(query string, included []models.IndividualResponse, method models.AggregationMethod) (models.IndividualResponse, []models.DisagreementPoint) {
	clusters := clusterResponses(included)

	var winner *cluster
	switch method {
	case models.AggregationMajorityVote:
		// Largest cluster; ties break toward higher total quality.
		for _, c := range clusters {
			if winner == nil ||
				len(c.members) > len(winner.members) ||
				(len(c.members) == len(winner.members) && c.qualityWeight() > winner.qualityWeight()) {
				winner = c
			}
		}
	case models.AggregationBestQuality:
		// The single highest-quality response verbatim.
		for _, c := range clusters {
			if winner == nil || c.best().QualityScore > winner.best().QualityScore {
				winner = c
			}
		}
	default: // weighted_average
		// Clusters weighted by the sum of member quality scores.
		for _, c := range clusters {
			if winner == nil || c.qualityWeight() > winner.qualityWeight() {
				winner = c
			}
		}
	}

	chosen := winner.best()
	var disagreements []models.DisagreementPoint
	for _, c := range clusters {
		if c == winner {
			continue
		}
		variants := make([]string, 0, len(c.members))
		dissenting := make([]string, 0, len(c.members))
		for _, m := range c.members {
			variants = append(variants, m.Response)
			dissenting = append(dissenting, m.Model)
		}
		disagreements = append(disagreements, models.DisagreementPoint{
			Topic:      topicOf(query),
			Variants:   variants,
			Resolution: chosen.Response,
			Models:     dissenting,
		})
	}
	return chosen, disagreements
}

// clusterResponses greedily groups responses whose canonical token sets
// overlap at clusterSimilarity or above. Order-stable: the first member of a
// cluster is its representative.
func clusterResponses(included []models.IndividualResponse) []*cluster {
	var clusters []*cluster
	for _, r := range included {
		tokens := tokenSet(r.Response)
		placed := false
		for _, c := range clusters {
			if jaccard(tokens, c.tokens) >= clusterSimilarity {
				c.members = append(c.members, r)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{members: []models.IndividualResponse{r}, tokens: tokens})
		}
	}
	return clusters
}

// tokenSet canonicalizes a response (lowercase, punctuation stripped,
// whitespace collapsed) and returns its distinct tokens.
func tokenSet(response string) map[string]struct{} {
	buf := utils.Get()
	defer utils.Put(buf)

	for _, r := range strings.ToLower(response) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			_, _ = buf.WriteString(string(r))
		default:
			_ = buf.WriteByte(' ')
		}
	}

	set := make(map[string]struct{})
	for _, tok := range strings.Fields(buf.String()) {
		set[tok] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func topicOf(query string) string {
	words := strings.Fields(strings.TrimSpace(query))
	if len(words) > topicWords {
		words = words[:topicWords]
	}
	return strings.Join(words, " ")
}
