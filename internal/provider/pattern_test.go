package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternToRegex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty pattern",
			input:    "",
			expected: ".*",
		},
		{
			name:     "wildcard only",
			input:    "*",
			expected: ".*",
		},
		{
			name:     "simple substring",
			input:    "youtube.com/embed/",
			expected: `youtube\.com/embed/`,
		},
		{
			name:     "hostname anchor",
			input:    "||player.vimeo.com",
			expected: `^(?:[a-z-]+:)?//(?:[^/?#]+\.)?player\.vimeo\.com`,
		},
		{
			name:     "hostname anchor with dot prefix",
			input:    "||.example.com",
			expected: `^(?:[a-z-]+:)?//(?:[^/?#]+)?\.example\.com`,
		},
		{
			name:     "trailing separator",
			input:    "||example.com^",
			expected: `^(?:[a-z-]+:)?//(?:[^/?#]+\.)?example\.com(?:[^%.0-9a-z_-]|$)`,
		},
		{
			name:     "left anchor",
			input:    "|https://maps.example.com",
			expected: `^https://maps\.example\.com`,
		},
		{
			name:     "right anchor",
			input:    "example.com/path|",
			expected: `example\.com/path$`,
		},
		{
			name:     "wildcard in middle",
			input:    "google.*/maps/embed",
			expected: `google\..*/maps/embed`,
		},
		{
			name:     "separator in middle",
			input:    "||example.com^*path",
			expected: `^(?:[a-z-]+:)?//(?:[^/?#]+\.)?example\.com[^%.0-9a-z_-].*path`,
		},
		{
			name:     "regex pattern",
			input:    `/youtu\.be\//`,
			expected: `youtu\.be\/`,
		},
		{
			name:     "regex pattern with flag",
			input:    `/arte\.tv\/player\//i`,
			expected: `arte\.tv\/player\/`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PatternToRegex(tt.input))
		})
	}
}

func TestCompilePattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		url     string
		match   bool
	}{
		{name: "case insensitive", pattern: "youtube.com/embed/", url: "https://WWW.YouTube.com/Embed/abc", match: true},
		{name: "substring miss", pattern: "youtube.com/embed/", url: "https://youtube.com/watch?v=1", match: false},
		{name: "host anchor matches subdomain", pattern: "||vimeo.com/video/", url: "https://player.vimeo.com/video/1", match: true},
		{name: "host anchor protocol relative", pattern: "||vimeo.com/video/", url: "//player.vimeo.com/video/1", match: true},
		{name: "host anchor rejects path occurrence", pattern: "||vimeo.com/video/", url: "https://evil.test/?u=vimeo.com/video/", match: false},
		{name: "separator at end of url", pattern: "||example.com^", url: "https://example.com", match: true},
		{name: "separator before path", pattern: "||example.com^", url: "https://example.com/x", match: true},
		{name: "separator rejects longer host", pattern: "||example.com^", url: "https://example.community/", match: false},
		{name: "regex", pattern: `/arte\.tv\/player\//`, url: "https://www.ARTE.tv/player/v5/", match: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompilePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.match, re.MatchString(tt.url))
		})
	}
}

func TestCompilePatternErrors(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{name: "empty", pattern: ""},
		{name: "blank", pattern: "   "},
		{name: "wildcards only", pattern: "**"},
		{name: "lookahead", pattern: `/foo(?=bar)/`},
		{name: "unbalanced", pattern: `/foo(/`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompilePattern(tt.pattern)
			assert.Error(t, err)
		})
	}
}

func TestValidateRegex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "valid simple regex", input: `example\.com`, expected: true},
		{name: "disjunction is fine in RE2", input: `foo|bar`, expected: true},
		{name: "numeric quantifier", input: `[0-9]{4}`, expected: true},
		{name: "negative lookbehind", input: `(?<!foo)bar`, expected: false},
		{name: "positive lookahead", input: `foo(?=bar)`, expected: false},
		{name: "backreference", input: `(a)\1`, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateRegex(tt.input))
		})
	}
}

func TestIsRegexPattern(t *testing.T) {
	assert.True(t, IsRegexPattern(`/a/`))
	assert.True(t, IsRegexPattern(`/a/i`))
	assert.False(t, IsRegexPattern(`//`))
	assert.False(t, IsRegexPattern(`/videos/embed`))
	assert.False(t, IsRegexPattern(`||a.com`))
}
