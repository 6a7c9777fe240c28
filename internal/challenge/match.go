package challenge

import "strings"

// Matches reports whether a detected label satisfies a challenge
// label. Deliberately permissive fuzzy containment, case-insensitive
// and symmetric by construction:
//   - either string contains the other as a substring, or
//   - any whitespace token of one is a substring of the other.
//
// "Coffee Cup" therefore matches a "Cup" challenge and vice versa.
func Matches(detected, challenge string) bool {
	d := strings.ToLower(strings.TrimSpace(detected))
	c := strings.ToLower(strings.TrimSpace(challenge))

	if d == "" || c == "" {
		return false
	}

	if strings.Contains(d, c) || strings.Contains(c, d) {
		return true
	}

	for _, token := range strings.Fields(d) {
		if strings.Contains(c, token) {
			return true
		}
	}
	for _, token := range strings.Fields(c) {
		if strings.Contains(d, token) {
			return true
		}
	}

	return false
}
