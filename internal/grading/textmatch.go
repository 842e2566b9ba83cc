package grading

import (
	"sort"
	"strings"
)

// normalize casefolds and trims surrounding whitespace.
func normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// sortedEqual compares two lists as multisets. Inputs are not modified.
func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
