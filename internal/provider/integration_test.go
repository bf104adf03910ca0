package provider_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/parser"
	"github.com/bnema/embed-consent/internal/provider"
)

const providerList = `! site-specific embeds
[peertube] PeerTube $logo=https://tube.example.org/logo.svg,logo-width=48,logo-height=48
||tube.example.org/videos/embed/
/\/w\/[0-9a-z]{8,}$/i

[bandcamp] Bandcamp
bandcamp.com/EmbeddedPlayer/

[broken] Broken
/(unclosed/
`

func TestParserToClassifierFlow(t *testing.T) {
	p := parser.New()
	providers, err := p.Parse(strings.NewReader(providerList))
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, 1, p.Stats().SkipReasons[parser.SkipInvalidRegex])
	assert.Equal(t, 48, providers[0].LogoWidth)

	c := provider.New(providers, nil)

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"host anchored rule", "https://tube.example.org/videos/embed/123", "peertube"},
		{"subdomain of anchored host", "https://www.tube.example.org/videos/embed/123", "peertube"},
		{"regex rule case-insensitive", "https://video.example.net/W/ABCDEF123", "peertube"},
		{"regex too short", "https://video.example.net/w/abc", models.GenericProvider},
		{"plain substring", "https://bandcamp.com/EmbeddedPlayer/album=1/size=large", "bandcamp"},
		{"builtin still matches", "https://www.youtube-nocookie.com/embed/xyz", "youtube"},
		{"anchored host does not match elsewhere", "https://evil.example/?u=tube.example.org/videos/embed/", models.GenericProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.url))
		})
	}
}

func TestCustomOverridesBuiltinFromList(t *testing.T) {
	p := parser.New()
	providers, err := p.Parse(strings.NewReader("[youtube-shorts] Shorts\nyoutube.com/embed/shorts/\n"))
	require.NoError(t, err)

	c := provider.New(providers, nil)
	assert.Equal(t, "youtube-shorts", c.Classify("https://www.youtube.com/embed/shorts/1"))
	assert.Equal(t, "youtube", c.Classify("https://www.youtube.com/embed/1"))
}
