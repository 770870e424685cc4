package services

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxDisplayNameLength = 32
	MaxChatLength        = 280
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup from user-supplied text, collapses whitespace and
// truncates to max runes.
func SanitizeText(s string, max int) string {
	clean := html.UnescapeString(textPolicy.Sanitize(s))
	clean = strings.Join(strings.Fields(clean), " ")

	runes := []rune(clean)
	if max > 0 && len(runes) > max {
		clean = strings.TrimSpace(string(runes[:max]))
	}
	return clean
}
