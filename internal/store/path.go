package store

import (
	"fmt"
	"strings"
)

// CleanPath normalizes a slash separated path. The empty path addresses the
// whole tree. Empty, "." and ".." segments are rejected.
func CleanPath(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "", nil
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return strings.Join(segs, "/"), nil
}

// Join concatenates path segments, skipping empty ones.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func split(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// related reports whether a change at changed affects a watcher of watched:
// either path is an ancestor of (or equal to) the other.
func related(watched, changed string) bool {
	return isPrefix(watched, changed) || isPrefix(changed, watched)
}

func isPrefix(parent, child string) bool {
	if parent == "" || parent == child {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}
