package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FoldExtension normalizes a file extension for allow-list comparison:
// surrounding whitespace and a leading dot are removed and the result is
// lower-cased. Example: " .JPG" -> "jpg"
func FoldExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimPrefix(ext, ".")
	// Casers keep state, so each call gets its own.
	return cases.Lower(language.Und).String(ext)
}

// ContainsFold reports whether list holds ext after folding both sides.
func ContainsFold(list []string, ext string) bool {
	ext = FoldExtension(ext)
	for _, item := range list {
		if FoldExtension(item) == ext {
			return true
		}
	}
	return false
}
