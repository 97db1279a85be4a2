// Package security keeps generated files inside their output roots.
package security

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrPathEscape is returned when a path resolves outside its root.
var ErrPathEscape = errors.New("path escapes root directory")

// maxFilenameLen bounds names built from dataset and protocol labels.
const maxFilenameLen = 128

// JoinWithin joins elems onto root and rejects results that leave root.
// The check is lexical, so it works on MemoryFileSystem paths as well as
// real ones.
func JoinWithin(root string, elems ...string) (string, error) {
	joined := filepath.Join(append([]string{root}, elems...)...)
	rel, err := filepath.Rel(filepath.Clean(root), joined)
	if err != nil || escapes(rel) {
		return "", errors.Wrapf(ErrPathEscape, "%s under %s", filepath.Join(elems...), root)
	}
	return joined, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel)
}

// SanitizeFilename turns a label into a report file stem. Runs of characters
// outside [A-Za-z0-9._-] become one underscore, leading and trailing dots and
// underscores are trimmed, and an empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isFilenameRune(r) {
			b.WriteRune(r)
			pending = false
			continue
		}
		if !pending {
			b.WriteByte('_')
			pending = true
		}
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}

func isFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return r == '.' || r == '_' || r == '-'
}
