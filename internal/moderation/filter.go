// Package moderation classifies post text against a fixed list of banned
// phrases.
package moderation

import "strings"

var bannedPhrases = []string{
	"suicide",
	"kill",
	"bomb",
	"attack",
	"shut up",
	"die",
}

// Flagged reports whether the lowercased text contains any banned phrase.
// Matching is by substring, so "diet" is flagged by "die".
func Flagged(text string) bool {
	if text == "" {
		return false
	}
	lc := strings.ToLower(text)
	for _, phrase := range bannedPhrases {
		if strings.Contains(lc, phrase) {
			return true
		}
	}
	return false
}
