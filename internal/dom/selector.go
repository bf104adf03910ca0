package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// CompileSelectors compiles selector groups once. Invalid entries are
// reported and left out; valid ones are still returned.
func CompileSelectors(selectors []string) ([]cascadia.Matcher, error) {
	var (
		out  []cascadia.Matcher
		errs []string
	)
	for _, s := range selectors {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		g, err := cascadia.ParseGroup(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%q: %v", s, err))
			continue
		}
		out = append(out, g)
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("invalid selectors: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// MatchesAny reports whether e matches at least one selector
func (e *Element) MatchesAny(sels []cascadia.Matcher) bool {
	for _, s := range sels {
		if e.Matches(s) {
			return true
		}
	}
	return false
}
