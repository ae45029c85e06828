// services/hashtag.go
package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Feed text arrives with invisible format runes (bidi marks like U+200E and
// U+202C get injected around hashtags by mobile clients); strip the whole
// Cf category before matching.
var formatRuneStripper = runes.Remove(runes.In(unicode.Cf))

// maxHashtagCandidates bounds how many campaign-looking tags we examine per
// post, so a pathological wall of hashtags cannot stall a pass.
const maxHashtagCandidates = 10

// HashtagExtractor pulls the mission code out of free-text post content.
// A conforming code is exactly 3 characters, starts with a letter and has a
// digit in the middle; that grammar is what separates campaign tags from
// incidental hashtags sharing the prefix. Pure and deterministic.
type HashtagExtractor struct {
	pattern *regexp.Regexp
}

// NewHashtagExtractor builds an extractor for one campaign prefix, e.g.
// "ntu" matches "#ntuA1B" anywhere in the text (case-insensitive).
func NewHashtagExtractor(prefix string) *HashtagExtractor {
	return &HashtagExtractor{
		pattern: regexp.MustCompile(`(?i)\B#` + regexp.QuoteMeta(prefix) + `([a-zA-Z0-9]+)`),
	}
}

// Extract returns the first conforming mission code in the text, upper-cased,
// or ok=false when none of the examined candidates conform.
func (e *HashtagExtractor) Extract(text string) (string, bool) {
	clean, _, err := transform.String(formatRuneStripper, text)
	if err != nil {
		clean = text
	}

	matches := e.pattern.FindAllStringSubmatch(clean, maxHashtagCandidates)
	for _, m := range matches {
		code := strings.ToUpper(m[1])
		if conformingCode(code) {
			return code, true
		}
	}
	return "", false
}

func conformingCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	return code[0] >= 'A' && code[0] <= 'Z' && code[1] >= '0' && code[1] <= '9'
}
