package tracker

import (
	"fmt"
	"strings"
)

// ResolveIdentifier returns the text between pathMarker and suffixMarker.
// Without a suffix marker the identifier ends at the next '/', '?' or '#'.
func ResolveIdentifier(link, pathMarker, suffixMarker string) (string, error) {
	start := strings.Index(link, pathMarker)
	if pathMarker == "" || start < 0 {
		return "", fmt.Errorf("%q has no %q: %w", link, pathMarker, ErrMalformedLink)
	}

	rest := link[start+len(pathMarker):]

	end := -1
	if suffixMarker != "" {
		end = strings.Index(rest, suffixMarker)
	}
	if end < 0 {
		end = strings.IndexAny(rest, "/?#")
	}
	if end < 0 {
		end = len(rest)
	}

	id := rest[:end]
	if id == "" {
		return "", fmt.Errorf("%q has an empty identifier: %w", link, ErrMalformedLink)
	}

	return id, nil
}
