package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleList = `! Site specific embeds
[peertube] PeerTube $logo=https://example.org/pt.svg,logo-width=48,logo-height=40px
||tube.example.org/videos/embed/
/\/w\/[0-9a-z]+$/

[Bandcamp]
bandcamp.com/EmbeddedPlayer/
`

func TestParse(t *testing.T) {
	p := New()
	providers, err := p.Parse(strings.NewReader(sampleList))
	require.NoError(t, err)
	require.Len(t, providers, 2)

	pt := providers[0]
	assert.Equal(t, "peertube", pt.ID)
	assert.Equal(t, "PeerTube", pt.Name)
	assert.Equal(t, "https://example.org/pt.svg", pt.Logo)
	assert.Equal(t, 48, pt.LogoWidth)
	assert.Equal(t, 40, pt.LogoHeight)
	assert.Equal(t, []string{"||tube.example.org/videos/embed/", `/\/w\/[0-9a-z]+$/`}, pt.Patterns)

	bc := providers[1]
	assert.Equal(t, "bandcamp", bc.ID)
	assert.Equal(t, "bandcamp", bc.Name)
	assert.Len(t, bc.Patterns, 1)

	stats := p.Stats()
	assert.Equal(t, 2, stats.Providers)
	assert.Equal(t, 3, stats.Rules)
	assert.Equal(t, 1, stats.Comments)
	assert.Equal(t, 0, stats.Unsupported)
}

func TestParseSkips(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{name: "orphan rule", input: "youtube.com/embed/", reason: SkipOrphanRule},
		{name: "empty header", input: "[] Nothing\nx.com", reason: SkipInvalidHeader},
		{name: "id with space", input: "[a b] Name\nx.com", reason: SkipInvalidHeader},
		{name: "invalid regex", input: "[a]\n/foo(?=bar)/\nok.com", reason: SkipInvalidRegex},
		{name: "unknown option", input: "[a] A $color=red\nok.com", reason: SkipUnknownOption},
		{name: "empty provider", input: "[a] A\n[b] B\nok.com", reason: SkipEmptyProvider},
		{name: "duplicate id", input: "[a]\nx.com\n[a]\ny.com", reason: SkipDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_, err := p.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, 1, p.Stats().SkipReasons[tt.reason])
		})
	}
}

func TestDuplicateKeepsFirst(t *testing.T) {
	p := New()
	providers, err := p.Parse(strings.NewReader("[a] First\nx.com\n[a] Second\ny.com"))
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "First", providers[0].Name)
}
