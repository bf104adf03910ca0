// Package provider maps embed URLs to the external service that serves them.
package provider

import (
	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/models"
)

// Classifier matches URLs against caller-supplied providers first, then
// against the built-in table. Matching is syntactic only.
type Classifier struct {
	custom  []Matcher
	builtin []Matcher
	byID    map[string]models.Provider
	stats   Stats
}

// New compiles the custom providers in the order supplied
func New(custom []models.Provider, log *zap.Logger) *Classifier {
	log = logging.OrNop(log).Named("provider")

	cc := NewCompiler()
	c := &Classifier{
		custom:  cc.Compile(custom),
		builtin: NewCompiler().Compile(builtins),
		byID:    make(map[string]models.Provider),
	}
	c.stats = cc.Stats()

	for reason, n := range c.stats.SkipReasons {
		log.Warn("skipped custom provider rules", zap.String("reason", reason), zap.Int("count", n))
	}

	for _, m := range c.builtin {
		c.byID[m.Provider.ID] = m.Provider
	}
	for _, m := range c.custom {
		c.byID[m.Provider.ID] = m.Provider
	}
	return c
}

// Classify returns the ID of the first provider with a matching rule, or
// models.GenericProvider when nothing matches.
func (c *Classifier) Classify(url string) string {
	if url == "" {
		return models.GenericProvider
	}
	for _, m := range c.custom {
		if m.Match(url) {
			return m.Provider.ID
		}
	}
	for _, m := range c.builtin {
		if m.Match(url) {
			return m.Provider.ID
		}
	}
	return models.GenericProvider
}

// Provider looks up a provider definition by ID. Custom definitions shadow
// built-ins with the same ID.
func (c *Classifier) Provider(id string) (models.Provider, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Providers lists every provider in match order
func (c *Classifier) Providers() []models.Provider {
	out := make([]models.Provider, 0, len(c.custom)+len(c.builtin))
	for _, m := range c.custom {
		out = append(out, m.Provider)
	}
	for _, m := range c.builtin {
		out = append(out, m.Provider)
	}
	return out
}

// Stats returns the custom provider compilation statistics
func (c *Classifier) Stats() Stats {
	return c.stats
}

// Classify is a one-shot helper for callers without a long-lived Classifier
func Classify(url string, custom []models.Provider) string {
	return New(custom, nil).Classify(url)
}
