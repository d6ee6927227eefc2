package internal

import (
	"path"
	"strings"
)

// NormalizePath turns a resource path into the form stored in the indexes:
// surrounding whitespace trimmed, a single leading slash, no trailing slash
// and no empty, "." or ".." segments. A blank path stays empty, which marks
// a resource without a path.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// PathDepth returns the number of segments of a normalized path. The root
// path has depth zero.
func PathDepth(p string) int {
	p = strings.Trim(p, "/")
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// IsBelow reports whether p equals prefix or lies underneath it. Both
// arguments are expected to be normalized.
func IsBelow(p, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return strings.HasPrefix(p, "/")
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
