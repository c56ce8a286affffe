package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/Egham-7/cascade-engine/internal/utils"
)

// Normalize lowercases a query and collapses all whitespace runs to a single
// space so trivially different spellings of the same question share a cache
// key.
func Normalize(query string) string {
	buf := utils.Get()
	defer utils.Put(buf)

	inSpace := true // leading whitespace is dropped
	for _, r := range strings.ToLower(query) {
		if unicode.IsSpace(r) {
			if !inSpace {
				_ = buf.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		_, _ = buf.WriteString(string(r))
		inSpace = false
	}

	return strings.TrimRight(buf.String(), " ")
}

// Key returns the deterministic content key for a query: the SHA-256 digest
// of the normalized text. Identical normalized text always yields the same
// key; distinct text collides with negligible probability.
func Key(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}
