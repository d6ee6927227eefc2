package repository

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Well known versions of a resource.
const (
	Live int64 = 0
	Work int64 = 1
)

// URI addresses one version of a resource. A uri resolves through its
// identifier when set, otherwise through its path. A non-empty Type
// narrows the match.
type URI struct {
	ID      string
	Type    string
	Path    string
	Version int64
}

func (u URI) String() string {
	var b strings.Builder
	if u.Type != "" {
		b.WriteString(u.Type)
		b.WriteByte(':')
	}
	switch {
	case u.ID != "" && u.Path != "":
		fmt.Fprintf(&b, "%s(%s)", u.Path, u.ID)
	case u.ID != "":
		b.WriteString(u.ID)
	default:
		b.WriteString(u.Path)
	}
	fmt.Fprintf(&b, "@%s", VersionName(u.Version))
	return b.String()
}

// VersionName renders the well known versions by name.
func VersionName(v int64) string {
	switch v {
	case Live:
		return "live"
	case Work:
		return "work"
	}
	return strconv.FormatInt(v, 10)
}

// ParseVersion accepts "live", "work" or a decimal version number.
func ParseVersion(s string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "live":
		return Live, nil
	case "work":
		return Work, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version %q: %w", s, ErrInvalid)
	}
	return v, nil
}

// Resource is what the repository hands to the index when content is
// stored: its uri, the languages it is available in and whether the search
// collaborator should see it.
type Resource struct {
	URI
	Languages []language.Tag
	Indexed   bool
}
