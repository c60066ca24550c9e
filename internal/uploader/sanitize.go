package uploader

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxBaseNameLen = 180

// SanitizeFilename builds a safe remote file name from a user-supplied
// title and the original file's extension. Control and path-unsafe
// characters are replaced, the base name is length-capped, and the
// extension survives untouched.
func SanitizeFilename(title, originalName string) string {
	ext := filepath.Ext(originalName)

	base := strings.TrimSpace(title)
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(originalName), ext)
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsControl(r):
			// drop
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		cleaned = "file"
	}

	runes := []rune(cleaned)
	if len(runes) > maxBaseNameLen {
		cleaned = string(runes[:maxBaseNameLen])
	}

	return cleaned + ext
}
