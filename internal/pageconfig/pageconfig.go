// Package pageconfig reads embed configuration published by the page itself:
// a JSON meta tag and data attributes on the root element.
package pageconfig

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/i18n"
	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/models"
)

// MetaName is the name of the configuration meta tag
const MetaName = "embed-consent-config"

// Root element data attributes
const (
	AttrStorage     = "data-embed-consent-storage"
	AttrAlwaysAllow = "data-embed-consent-always-allow"
	AttrLanguage    = "data-embed-consent-language"
	AttrPrivacyURL  = "data-embed-consent-privacy-url"
)

// metaConfig mirrors the meta tag JSON. Pointers distinguish absent keys.
type metaConfig struct {
	EnableLocalStorage    *bool           `json:"enableLocalStorage"`
	ShowAlwaysAllowOption *bool           `json:"showAlwaysAllowOption"`
	Language              *string         `json:"language"`
	PrivacyPolicyURL      *string         `json:"privacyPolicyUrl"`
	ExcludeSelectors      []string        `json:"excludeSelectors"`
	Providers             json.RawMessage `json:"providers"`
}

// Acquire layers the page's own configuration over base: meta tag first,
// then root data attributes. Malformed input is logged and ignored. An
// empty language is resolved from the document.
func Acquire(doc *dom.Document, base models.EmbedConfig, log *zap.Logger) models.EmbedConfig {
	log = logging.OrNop(log).Named("pageconfig")
	cfg := base

	if meta := doc.First(`meta[name="` + MetaName + `"]`); meta != nil {
		if err := applyMeta(&cfg, meta.AttrOr("content", "")); err != nil {
			log.Warn("ignoring malformed meta configuration", zap.Error(err))
		}
	}

	if root := doc.DocumentElement(); root != nil {
		applyDataAttrs(&cfg, root)
	}

	if strings.TrimSpace(cfg.Language) == "" {
		htmlLang := ""
		if root := doc.DocumentElement(); root != nil {
			htmlLang = root.AttrOr("lang", "")
		}
		cfg.Language = i18n.Detect(htmlLang, doc.Text())
		log.Debug("detected page language", zap.String("language", cfg.Language))
	}
	return cfg
}

// applyMeta merges the meta JSON into cfg. cfg is left untouched on error.
func applyMeta(cfg *models.EmbedConfig, content string) error {
	var m metaConfig
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return fmt.Errorf("failed to parse %s: %w", MetaName, err)
	}

	var providers []models.Provider
	if len(m.Providers) > 0 && !bytes.Equal(bytes.TrimSpace(m.Providers), []byte("null")) {
		var err error
		providers, err = DecodeProviders(m.Providers)
		if err != nil {
			return err
		}
	}

	if m.EnableLocalStorage != nil {
		cfg.EnableLocalStorage = *m.EnableLocalStorage
	}
	if m.ShowAlwaysAllowOption != nil {
		cfg.ShowAlwaysAllowOption = *m.ShowAlwaysAllowOption
	}
	if m.Language != nil {
		cfg.Language = *m.Language
	}
	if m.PrivacyPolicyURL != nil {
		cfg.PrivacyPolicyURL = *m.PrivacyPolicyURL
	}
	if m.ExcludeSelectors != nil {
		cfg.ExcludeSelectors = m.ExcludeSelectors
	}
	if len(providers) > 0 {
		cfg.Providers = append(providers, cfg.Providers...)
	}
	return nil
}

func applyDataAttrs(cfg *models.EmbedConfig, root *dom.Element) {
	if v, ok := root.Attr(AttrStorage); ok {
		cfg.EnableLocalStorage = v != "false"
	}
	if v, ok := root.Attr(AttrAlwaysAllow); ok {
		cfg.ShowAlwaysAllowOption = v != "false"
	}
	if v, ok := root.Attr(AttrLanguage); ok && v != "" {
		cfg.Language = v
	}
	if v, ok := root.Attr(AttrPrivacyURL); ok && v != "" {
		cfg.PrivacyPolicyURL = v
	}
}

// DecodeProviders reads providers either as an object keyed by ID, keeping
// the key order, or as an array of objects carrying their own "id".
func DecodeProviders(raw []byte) ([]models.Provider, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read providers: %w", err)
	}

	switch tok {
	case json.Delim('['):
		var out []models.Provider
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("failed to decode providers: %w", err)
		}
		return out, nil
	case json.Delim('{'):
	default:
		return nil, fmt.Errorf("providers must be an object or array, got %v", tok)
	}

	var out []models.Provider
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read provider id: %w", err)
		}
		id, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected provider key %v", tok)
		}
		var p models.Provider
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode provider %s: %w", id, err)
		}
		p.ID = id
		out = append(out, p)
	}
	return out, nil
}
