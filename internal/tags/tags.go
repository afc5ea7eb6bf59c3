// Package tags handles the canonical comma-joined tag representation.
// Tags form an ordered set: order is preserved, duplicates and blanks drop.
package tags

import "strings"

// Canonical trims each tag, drops empties, and removes duplicates while
// keeping first-seen order. The result is never nil.
func Canonical(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Split parses a comma-joined tag string into canonical form.
func Split(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return Canonical(strings.Split(s, ","))
}

// Join serializes tags into the canonical comma-joined form.
func Join(ts []string) string {
	return strings.Join(Canonical(ts), ",")
}
