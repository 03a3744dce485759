package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// CleanText sanitizes user supplied text and trims surrounding whitespace.
// Entities the sanitizer introduced are decoded again so plain text round-trips;
// input that only survives sanitizing in escaped form stays escaped.
func CleanText(input string) string {
	clean := strings.TrimSpace(Sanitize(input))
	plain := html.UnescapeString(clean)
	if plain != clean && strings.TrimSpace(Sanitize(plain)) != clean {
		return clean
	}
	return plain
}
