package obs

import "strings"

// CanonicalPath collapses identifier segments so metric labels stay low-cardinality.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 2 && parts[0] == "users" && parts[1] != "" {
		return "/users/:id"
	}
	return path
}
