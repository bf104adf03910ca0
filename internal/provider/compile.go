package provider

import (
	"errors"
	"regexp"

	"github.com/bnema/embed-consent/internal/models"
)

// Compiler turns provider definitions into matchers
type Compiler struct {
	stats Stats
}

// Stats tracks compilation statistics
type Stats struct {
	Compiled    int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipInvalidPattern = "invalid-pattern"
	SkipEmptyPattern   = "empty-pattern"
	SkipMissingID      = "missing-id"
	SkipDuplicateID    = "duplicate-id"
)

// Matcher is a provider with its compiled rules, in rule order
type Matcher struct {
	Provider models.Provider
	rules    []*regexp.Regexp
}

// Match reports whether any rule matches url
func (m Matcher) Match(url string) bool {
	for _, re := range m.rules {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// NewCompiler creates a new compiler
func NewCompiler() *Compiler {
	return &Compiler{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

func (c *Compiler) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns compilation statistics
func (c *Compiler) Stats() Stats {
	return c.stats
}

// Compile builds matchers, preserving provider order. Invalid rules are
// dropped individually; a provider keeps its valid rules. Later definitions
// of an already seen ID are skipped.
func (c *Compiler) Compile(providers []models.Provider) []Matcher {
	matchers := make([]Matcher, 0, len(providers))
	seen := make(map[string]bool, len(providers))

	for _, p := range providers {
		if p.ID == "" {
			c.skip(SkipMissingID)
			continue
		}
		if seen[p.ID] {
			c.skip(SkipDuplicateID)
			continue
		}
		seen[p.ID] = true

		m := Matcher{Provider: p}
		for _, pattern := range p.Patterns {
			re, err := CompilePattern(pattern)
			if err != nil {
				if errors.Is(err, ErrEmptyPattern) {
					c.skip(SkipEmptyPattern)
				} else {
					c.skip(SkipInvalidPattern)
				}
				continue
			}
			m.rules = append(m.rules, re)
		}

		c.stats.Compiled++
		matchers = append(matchers, m)
	}

	return matchers
}
