package classify

import "strings"

// stoplist holds generic/technical terms that make useless challenges.
// A label is rejected when its normalized text contains any of these
// as a substring.
var stoplist = []string{
	"background",
	"material",
	"texture",
	"pattern",
	"surface",
	"structure",
	"design",
	"style",
	"arrangement",
	"composition",
	"element",
	"component",
	"detail",
	"feature",
	"aspect",
}

// stoplisted reports whether the normalized label contains any
// stoplisted substring. Matching is case-insensitive.
func stoplisted(normalized string, extra []string) bool {
	lower := strings.ToLower(normalized)
	for _, term := range stoplist {
		if strings.Contains(lower, term) {
			return true
		}
	}
	for _, term := range extra {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
