package models

import "time"

// CacheEntry is a prior (query -> response) pair owned by the response cache.
// Callers always receive copies; an entry is never shared by reference
// outside the cache.
type CacheEntry struct {
	Response     string    `json:"response"`
	ModelUsed    string    `json:"model_used"`
	QualityScore float64   `json:"quality_score"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired reports whether the entry has outlived the given TTL.
func (e CacheEntry) IsExpired(ttl time.Duration, now time.Time) bool {
	return now.After(e.CreatedAt.Add(ttl))
}
