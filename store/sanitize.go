package store

import (
	"regexp"
	"strings"
)

var disallowedChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// sanitizeID makes a caller-supplied identifier safe to use as a file
// name: path traversal sequences and separators are stripped outright,
// every other disallowed rune becomes "_". No sanitized id can escape
// its collection directory. An id that sanitizes to nothing is an error.
func sanitizeID(id string) (string, error) {
	s := id
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "")
	}
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	s = disallowedChars.ReplaceAllString(s, "_")
	if s == "" {
		return "", ErrEmptyID
	}
	return s, nil
}
