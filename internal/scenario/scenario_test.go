package scenario

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bnema/embed-consent/internal/consent"
	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/gate"
	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/page"
)

const script = `
name: hidden tab then bfcache
steps:
  - event: visibility
    visible: false
  - confirm: "#yt"
  - event: visibility
    visible: true
  - insert:
      parent: "#feed"
      html: '<iframe id="late" src="https://player.vimeo.com/video/1"></iframe>'
  - flush: true
  - event: pageshow
    persisted: true
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, "hidden tab then bfcache", s.Name)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, "event", s.Steps[0].action())
	assert.Equal(t, "confirm", s.Steps[1].action())
	assert.Equal(t, "insert", s.Steps[3].action())
	assert.Equal(t, "flush", s.Steps[4].action())

	empty, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Steps)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"unknown event", "steps:\n  - event: resize\n"},
		{"visibility without value", "steps:\n  - event: visibility\n"},
		{"two actions", "steps:\n  - event: beforeprint\n    flush: true\n"},
		{"no action", "steps:\n  - remember: true\n"},
		{"insert without parent", "steps:\n  - insert:\n      html: '<p></p>'\n"},
		{"unknown field", "steps:\n  - click: '#yt'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.script))
			assert.Error(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	doc, err := dom.ParseString(`<html><body>
<iframe id="yt" src="https://www.youtube.com/embed/abc"></iframe>
<div id="feed"></div></body></html>`)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	p, err := page.New(doc, models.DefaultEmbedConfig(),
		page.WithStore(consent.NewStore(consent.NewMemory(), "", log)),
		page.WithLogger(log),
		page.WithDebounce(time.Hour))
	require.NoError(t, err)
	defer p.Stop()
	p.Start()

	s, err := Load(strings.NewReader(script))
	require.NoError(t, err)

	results, err := Run(p, s)
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, "#yt: pending-load", results[1].Detail)
	assert.Equal(t, map[gate.State]int{gate.Active: 1}, results[2].Summary)
	assert.Equal(t, "gated=1", results[4].Detail)
	assert.Equal(t, map[gate.State]int{gate.Gated: 2}, results[5].Summary)
}

func TestRunStopsOnError(t *testing.T) {
	doc, err := dom.ParseString(`<html><body></body></html>`)
	require.NoError(t, err)
	p, err := page.New(doc, models.DefaultEmbedConfig(), page.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer p.Stop()

	s, err := Load(strings.NewReader("steps:\n  - confirm: '#missing'\n  - flush: true\n"))
	require.NoError(t, err)

	results, err := Run(p, s)
	assert.ErrorIs(t, err, page.ErrNoElement)
	assert.Empty(t, results)
}
