// Package security sanitises user-provided strings before they reach file
// names and response headers.
package security

import "strings"

const maxFilenameLen = 128

// SanitizeFilename keeps ASCII letters, digits, dot, underscore and dash,
// replaces runs of anything else with one underscore, trims leading and
// trailing dots and underscores, and caps the length. An empty result
// becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ExportFilename builds a download name for a stored run from its label,
// falling back to the run ID when the label is empty.
func ExportFilename(label, runID, ext string) string {
	base := label
	if strings.TrimSpace(base) == "" {
		base = runID
	}
	return SanitizeFilename(base) + "." + strings.TrimPrefix(ext, ".")
}
