package utils

import (
	"regexp"
	"strings"
)

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix path components
var repeatedUnderscores = regexp.MustCompile(`_+`)

const maxPathComponentLength = 100

// SanitizePathComponent turns an arbitrary string (e.g. a domain) into a safe single path component.
func SanitizePathComponent(name string) string {
	sanitized := invalidPathChars.ReplaceAllString(name, "_")
	sanitized = repeatedUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxPathComponentLength {
		sanitized = strings.Trim(sanitized[:maxPathComponentLength], "_ ")
	}
	if sanitized == "" {
		sanitized = "site"
	}
	return sanitized
}
