package resourcefs

import "strings"

// canonicalize normalises a filename per spec.md §4.3: forward slashes only,
// no leading slash, "./" components collapsed, and any ".." component that
// would leave the mount root rejected with ErrPathEscape.
func canonicalize(filename string) (string, error) {
	if strings.ContainsRune(filename, '\\') {
		return "", ErrPathEscape
	}
	if strings.HasPrefix(filename, "/") {
		return "", ErrPathEscape
	}

	parts := strings.Split(filename, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			// collapse empty and "./" components
			continue
		case "..":
			if len(stack) == 0 {
				return "", ErrPathEscape
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	if len(stack) == 0 {
		return "", ErrPathEscape
	}
	return strings.Join(stack, "/"), nil
}
