package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/embed-consent/internal/models"
)

func TestClassifyBuiltins(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "youtube embed", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", expected: "youtube"},
		{name: "youtube nocookie", url: "https://www.youtube-nocookie.com/embed/x", expected: "youtube"},
		{name: "youtube short", url: "https://youtu.be/x", expected: "youtube"},
		{name: "youtube upper case", url: "HTTPS://WWW.YOUTUBE.COM/EMBED/X", expected: "youtube"},
		{name: "vimeo player", url: "https://player.vimeo.com/video/76979871", expected: "vimeo"},
		{name: "arte", url: "https://www.arte.tv/player/v5/index.php?json_url=x", expected: "arte"},
		{name: "google maps", url: "https://www.google.com/maps/embed?pb=!1m18", expected: "googlemaps"},
		{name: "openstreetmap", url: "https://www.openstreetmap.org/export/embed.html?bbox=1", expected: "openstreetmap"},
		{name: "komoot", url: "https://www.komoot.com/de-de/tour/123/embed?profile=1", expected: "komoot"},
		{name: "spotify", url: "https://open.spotify.com/embed/track/1", expected: "spotify"},
		{name: "unknown", url: "https://example.com/widget", expected: models.GenericProvider},
		{name: "empty", url: "", expected: models.GenericProvider},
	}

	c := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.url))
		})
	}
}

func TestCustomProvidersTakePriority(t *testing.T) {
	custom := []models.Provider{
		{ID: "showcase", Name: "Vimeo Showcase", Patterns: []string{"player.vimeo.com/video/1"}},
		{ID: "peertube", Name: "PeerTube", Patterns: []string{"/videos/embed/"}},
	}

	assert.Equal(t, "showcase", Classify("https://player.vimeo.com/video/123", custom))
	assert.Equal(t, "vimeo", Classify("https://player.vimeo.com/video/999", custom))
	assert.Equal(t, "peertube", Classify("https://tube.example.org/videos/embed/abc", custom))
}

func TestCustomProviderOrder(t *testing.T) {
	first := models.Provider{ID: "first", Patterns: []string{"example.com"}}
	second := models.Provider{ID: "second", Patterns: []string{"example.com/embed"}}

	url := "https://example.com/embed/1"
	assert.Equal(t, "first", Classify(url, []models.Provider{first, second}))
	assert.Equal(t, "second", Classify(url, []models.Provider{second, first}))
}

func TestCustomProviderCanForceGeneric(t *testing.T) {
	custom := []models.Provider{
		{ID: models.GenericProvider, Patterns: []string{"youtube.com/embed/videoseries"}},
	}
	assert.Equal(t, models.GenericProvider, Classify("https://www.youtube.com/embed/videoseries?list=1", custom))
	assert.Equal(t, "youtube", Classify("https://www.youtube.com/embed/abc", custom))
}

func TestProviderLookup(t *testing.T) {
	c := New([]models.Provider{{ID: "youtube", Name: "YT Override", Patterns: []string{"yt.example"}}}, nil)

	p, ok := c.Provider("youtube")
	require.True(t, ok)
	assert.Equal(t, "YT Override", p.Name)

	p, ok = c.Provider(models.GenericProvider)
	require.True(t, ok)
	assert.Empty(t, p.Patterns)

	_, ok = c.Provider("missing")
	assert.False(t, ok)

	all := c.Providers()
	assert.Equal(t, "youtube", all[0].ID)
	assert.Equal(t, models.GenericProvider, all[len(all)-1].ID)
}

func TestCompilerStats(t *testing.T) {
	c := NewCompiler()
	matchers := c.Compile([]models.Provider{
		{ID: "ok", Patterns: []string{"a.example", `/b(?=c)/`, ""}},
		{Name: "no id", Patterns: []string{"x"}},
		{ID: "ok", Patterns: []string{"dup"}},
	})

	require.Len(t, matchers, 1)
	assert.True(t, matchers[0].Match("https://a.example/x"))

	stats := c.Stats()
	assert.Equal(t, 1, stats.Compiled)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 1, stats.SkipReasons[SkipInvalidPattern])
	assert.Equal(t, 1, stats.SkipReasons[SkipEmptyPattern])
	assert.Equal(t, 1, stats.SkipReasons[SkipMissingID])
	assert.Equal(t, 1, stats.SkipReasons[SkipDuplicateID])
}

func TestBuiltinsEndWithGeneric(t *testing.T) {
	b := Builtins()
	last := b[len(b)-1]
	assert.Equal(t, models.GenericProvider, last.ID)
	assert.Empty(t, last.Patterns)
}
