package config

import "strings"

// BuildURL joins parts with exactly one slash between them. Leading and
// trailing slashes of each part are dropped and empty parts are skipped.
func BuildURL(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, "/")
}
