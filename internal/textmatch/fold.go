// Package textmatch implements the case-insensitive substring matching used
// by note search.
package textmatch

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s in a form suitable for caseless comparison: compatibility
// normalized (NFKC) and Unicode case folded.
func Fold(s string) string {
	// cases.Caser is stateful and not safe for concurrent use.
	return cases.Fold().String(norm.NFKC.String(s))
}

// Contains reports whether needle occurs in haystack ignoring case.
// An empty needle matches everything.
func Contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Matcher holds a pre-folded query so one search can test many notes without
// folding the query each time.
type Matcher struct {
	folded string
}

// NewMatcher folds query once.
func NewMatcher(query string) Matcher {
	return Matcher{folded: Fold(query)}
}

// Match reports whether any field contains the query.
func (m Matcher) Match(fields ...string) bool {
	if m.folded == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), m.folded) {
			return true
		}
	}
	return false
}
