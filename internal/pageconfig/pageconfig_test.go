package pageconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/models"
)

func acquire(t *testing.T, markup string, base models.EmbedConfig) models.EmbedConfig {
	t.Helper()
	doc, err := dom.ParseString(markup)
	require.NoError(t, err)
	return Acquire(doc, base, zaptest.NewLogger(t))
}

func TestAcquireMeta(t *testing.T) {
	cfg := acquire(t, `<html><head>
<meta name="embed-consent-config" content='{"enableLocalStorage":false,"language":"de","privacyPolicyUrl":"/privacy","providers":{"zeta":{"name":"Zeta","patterns":["zeta.example/embed"]},"alpha":{"name":"Alpha","patterns":["/alpha\\.example\\/v\\//i"],"logoWidth":32}}}'>
</head><body></body></html>`, models.DefaultEmbedConfig())

	assert.False(t, cfg.EnableLocalStorage)
	assert.True(t, cfg.ShowAlwaysAllowOption)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "/privacy", cfg.PrivacyPolicyURL)
	assert.Equal(t, []string{".no-consent", "[data-no-consent]"}, cfg.ExcludeSelectors)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "zeta", cfg.Providers[0].ID)
	assert.Equal(t, "alpha", cfg.Providers[1].ID)
	assert.Equal(t, 32, cfg.Providers[1].LogoWidth)
	assert.Equal(t, []string{`/alpha\.example\/v\//i`}, cfg.Providers[1].Patterns)
}

func TestAcquireDataAttributesOverrideMeta(t *testing.T) {
	cfg := acquire(t, `<html data-embed-consent-storage="true" data-embed-consent-always-allow="false" data-embed-consent-language="en" data-embed-consent-privacy-url="https://example.org/p">
<head><meta name="embed-consent-config" content='{"enableLocalStorage":false,"language":"de"}'></head><body></body></html>`, models.DefaultEmbedConfig())

	assert.True(t, cfg.EnableLocalStorage)
	assert.False(t, cfg.ShowAlwaysAllowOption)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "https://example.org/p", cfg.PrivacyPolicyURL)
}

func TestAcquireMalformedMeta(t *testing.T) {
	base := models.DefaultEmbedConfig()
	cfg := acquire(t, `<html><head><meta name="embed-consent-config" content="{not json"></head><body></body></html>`, base)
	assert.Equal(t, base, cfg)

	cfg = acquire(t, `<html><head><meta name="embed-consent-config" content='{"enableLocalStorage":false,"providers":"yes"}'></head><body></body></html>`, base)
	assert.Equal(t, base, cfg)
}

func TestAcquireLanguageDetection(t *testing.T) {
	base := models.DefaultEmbedConfig()
	base.Language = ""

	tests := []struct {
		name     string
		markup   string
		expected string
	}{
		{"html lang", `<html lang="de-CH"><body>hello</body></html>`, "de-ch"},
		{"body text", `<html><body><p>Dieses eingebettete Medium wird von einem externen Anbieter bereitgestellt.</p></body></html>`, "de"},
		{"fallback", `<html><body></body></html>`, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, acquire(t, tt.markup, base).Language)
		})
	}
}

func TestDecodeProviders(t *testing.T) {
	ps, err := DecodeProviders([]byte(`[{"id":"a","patterns":["a.example"]},{"id":"b","name":"B"}]`))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "a", ps[0].ID)
	assert.Equal(t, "B", ps[1].Name)

	_, err = DecodeProviders([]byte(`42`))
	assert.Error(t, err)

	_, err = DecodeProviders([]byte(`{"a": 1}`))
	assert.Error(t, err)
}
