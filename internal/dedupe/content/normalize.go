package content

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/zeebo/blake3"
)

// Normalize canonicalizes instruction text for content folding: lowercase,
// trim, collapse internal whitespace, and strip punctuation except
// apostrophes. The result is deterministic and stable across process
// restarts, so hashes computed before a restart still match after it.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) && r != '\'':
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// HashText returns the hex BLAKE3 digest of the normalized text.
func HashText(text string) string {
	sum := blake3.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
