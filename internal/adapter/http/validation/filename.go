// Package validation sanitizes externally visible file names. Artifact names
// are generated internally (job id plus extension), but the download endpoint
// still treats every requested name as hostile.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 255

// SanitizeFilename makes a name safe for Content-Disposition headers and
// path joins. Control characters, quotes, separators and header-breaking
// runes become underscores; Unicode is preserved; overlong names are
// truncated keeping the extension. Empty input becomes "file".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if unsafeRune(r) {
			sb.WriteRune('_')
			continue
		}
		sb.WriteRune(r)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" || strings.Trim(out, "_") == "" {
		return "file"
	}
	if len(out) > maxNameLength {
		out = truncateKeepingExt(out)
	}
	return out
}

// ContentDisposition formats a safe Content-Disposition value.
func ContentDisposition(filename string, inline bool) string {
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}
	return fmt.Sprintf("%s; filename=%q", disposition, SanitizeFilename(filename))
}

func unsafeRune(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	switch r {
	case '"', '\\', '/', ':':
		return true
	}
	return false
}

func truncateKeepingExt(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || len(ext) >= maxNameLength {
		return cutAtRuneBoundary(name, maxNameLength)
	}
	base := name[:len(name)-len(ext)]
	return cutAtRuneBoundary(base, maxNameLength-len(ext)) + ext
}

func cutAtRuneBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:max])
		if r != utf8.RuneError {
			break
		}
		max--
	}
	return s[:max]
}
