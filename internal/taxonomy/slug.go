// Package taxonomy builds the category tree and resolves display paths
// for tags.
package taxonomy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Slugify converts a tag name to a URL-safe slug.
// "Board Games" -> "board-games".
// "Dārzkopība" -> "darzkopiba".
// "Hiking & Trekking" -> "hiking-trekking".
func Slugify(s string) string {
	// Decompose so diacritics become separate marks we can drop.
	s = norm.NFKD.String(s)

	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
