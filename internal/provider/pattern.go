package provider

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Filter-list syntax building blocks. Matching is always case-insensitive.
const (
	// Separator matches any character that cannot be part of a hostname or path token
	restrSeparator = `[^%.0-9a-z_-]`
	// A trailing separator also matches the end of the URL
	restrSeparatorEnd = `(?:[^%.0-9a-z_-]|$)`
	// Hostname anchor for patterns starting with ||, protocol-relative URLs included
	restrHostnameAnchor1 = `^(?:[a-z-]+:)?//(?:[^/?#]+\.)?`
	// Hostname anchor for patterns starting with ||.
	restrHostnameAnchor2 = `^(?:[a-z-]+:)?//(?:[^/?#]+)?`
)

var (
	// Characters to escape in regex (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Dangling asterisks at start/end
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	// Asterisks in pattern
	reAsterisks = regexp.MustCompile(`\*+`)
	// Separator placeholder
	reSeparators = regexp.MustCompile(`\^`)
)

// ErrEmptyPattern is returned for patterns that would match every URL by accident
var ErrEmptyPattern = errors.New("empty pattern")

// IsRegexPattern reports whether p is written as /regex/ or /regex/i
func IsRegexPattern(p string) bool {
	_, ok := regexBody(p)
	return ok
}

func regexBody(p string) (string, bool) {
	s := strings.TrimSuffix(p, "/i")
	if s != p {
		s += "/"
	}
	if len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// PatternToRegex converts a filter-list style pattern to a regular expression.
// Patterns already written as /regex/ are returned unwrapped.
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ".*"
	}

	if body, ok := regexBody(pattern); ok {
		return body
	}

	s := pattern
	anchor := 0 // 0b100 = hostname (||), 0b010 = left (|), 0b001 = right (|)

	if strings.HasPrefix(s, "||") {
		anchor = 0b100
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		anchor = 0b010
		s = s[1:]
	}

	if strings.HasSuffix(s, "|") {
		anchor |= 0b001
		s = s[:len(s)-1]
	}

	trailingSeparator := strings.HasSuffix(s, "^")
	if trailingSeparator {
		s = s[:len(s)-1]
	}

	reStr := rePlainChars.ReplaceAllString(s, `\$0`)
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)
	reStr = reDanglingAsterisks.ReplaceAllString(reStr, "")
	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	if trailingSeparator {
		reStr += restrSeparatorEnd
	}

	if anchor&0b100 != 0 {
		if strings.HasPrefix(reStr, `\.`) {
			reStr = restrHostnameAnchor2 + reStr
		} else {
			reStr = restrHostnameAnchor1 + reStr
		}
	} else if anchor&0b010 != 0 {
		reStr = "^" + reStr
	}

	if anchor&0b001 != 0 {
		reStr += "$"
	}

	return reStr
}

// CompilePattern turns a provider rule into a case-insensitive matcher
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" || strings.Trim(pattern, "*") == "" {
		return nil, ErrEmptyPattern
	}

	re, err := regexp.Compile("(?i)" + PatternToRegex(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// ValidateRegex checks that a /regex/ body compiles with Go's RE2 engine.
// Lookarounds and backreferences are not supported there.
func ValidateRegex(pattern string) bool {
	_, err := regexp.Compile(pattern)
	return err == nil
}
