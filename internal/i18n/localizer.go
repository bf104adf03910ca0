// Package i18n supplies display strings for the consent overlay and the
// runtime status messages.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/bnema/embed-consent/internal/models"
)

// DefaultLanguage is used when a requested language has no table
const DefaultLanguage = "en"

// ProviderPlaceholder is substituted with the provider display name
const ProviderPlaceholder = "{provider}"

//go:embed locales/*.yaml
var locales embed.FS

// Messages holds the runtime surface strings
type Messages struct {
	ResetDone          string `yaml:"reset_done"`
	ResetNone          string `yaml:"reset_none"`
	StorageUnavailable string `yaml:"storage_unavailable"`
	StatusAutoload     string `yaml:"status_autoload"`
	StatusRequired     string `yaml:"status_required"`
}

// Table is the translation table for one language
type Table struct {
	ConsentText         string            `yaml:"consent_text"`
	ProviderConsentText string            `yaml:"provider_consent_text"`
	ButtonLabel         string            `yaml:"button_label"`
	AlwaysAllowLabel    string            `yaml:"always_allow_label"`
	LearnMore           string            `yaml:"learn_more"`
	Providers           map[string]string `yaml:"providers"`
	Messages            Messages          `yaml:"messages"`
}

// Localizer resolves language codes to translation tables
type Localizer struct {
	tables  map[string]Table
	tags    []language.Tag
	matcher language.Matcher
}

// NewLocalizer loads every embedded translation table
func NewLocalizer() (*Localizer, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	l := &Localizer{tables: make(map[string]Table)}
	for _, entry := range entries {
		code := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := locales.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", code, err)
		}
		var t Table
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", code, err)
		}
		l.tables[code] = t
	}
	if _, ok := l.tables[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default locale %q missing", DefaultLanguage)
	}

	// The matcher falls back to its first tag, so the default goes first.
	l.tags = append(l.tags, language.MustParse(DefaultLanguage))
	for _, code := range l.Languages() {
		if code != DefaultLanguage {
			l.tags = append(l.tags, language.MustParse(code))
		}
	}
	l.matcher = language.NewMatcher(l.tags)
	return l, nil
}

// MustLocalizer is NewLocalizer for callers that cannot handle a broken build
func MustLocalizer() *Localizer {
	l, err := NewLocalizer()
	if err != nil {
		panic(err)
	}
	return l
}

// Languages lists the available language codes, sorted
func (l *Localizer) Languages() []string {
	codes := make([]string, 0, len(l.tables))
	for code := range l.tables {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Resolve maps a requested code (e.g. "de-AT") to an available one
func (l *Localizer) Resolve(code string) string {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := l.matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	base, _ := l.tags[idx].Base()
	return base.String()
}

// Table returns the translation table for a code, falling back to the default
func (l *Localizer) Table(code string) Table {
	return l.tables[l.Resolve(code)]
}

// ProviderName is the display name of a provider in the given language.
// Unlisted providers use the provider's own name, then the generic name.
func (l *Localizer) ProviderName(code string, p models.Provider) string {
	t := l.Table(code)
	if name := t.Providers[p.ID]; name != "" {
		return name
	}
	if p.Name != "" {
		return p.Name
	}
	return t.Providers[models.GenericProvider]
}

// ConsentText is the overlay sentence for a provider. The generic provider
// uses the neutral copy; others get the provider-specific template.
func (l *Localizer) ConsentText(code string, p models.Provider) string {
	t := l.Table(code)
	if p.ID == models.GenericProvider || t.ProviderConsentText == "" {
		return t.ConsentText
	}
	return strings.ReplaceAll(t.ProviderConsentText, ProviderPlaceholder, l.ProviderName(code, p))
}
