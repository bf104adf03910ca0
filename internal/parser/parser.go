// Package parser reads provider list files: filter-list style text where a
// bracketed header opens a provider and the following lines are its rules.
//
//	! comment
//	[peertube] PeerTube $logo=https://example.org/pt.svg,logo-width=48,logo-height=48
//	||tube.example.org/videos/embed/
//	/\/w\/[0-9a-z]+$/
package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/provider"
)

// Parser parses provider list files
type Parser struct {
	stats Stats
}

// Stats tracks parsing statistics
type Stats struct {
	Total       int
	Providers   int
	Rules       int
	Comments    int
	Unsupported int
	SkipReasons map[string]int // Detailed breakdown of skipped lines
}

// SkipReason constants
const (
	SkipOrphanRule    = "rule without provider header"
	SkipInvalidHeader = "invalid header"
	SkipInvalidRegex  = "invalid-regex"
	SkipUnknownOption = "unknown-option"
	SkipEmptyProvider = "provider without rules"
	SkipDuplicateID   = "duplicate provider id"
)

// New creates a new parser
func New() *Parser {
	return &Parser{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
	}
}

func (p *Parser) skip(reason string) {
	p.stats.Unsupported++
	p.stats.SkipReasons[reason]++
}

// Stats returns parsing statistics
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads list content and returns providers in file order
func (p *Parser) Parse(r io.Reader) ([]models.Provider, error) {
	var (
		providers []models.Provider
		current   *models.Provider
		seen      = make(map[string]bool)
	)

	closeCurrent := func() {
		if current == nil {
			return
		}
		if len(current.Patterns) == 0 {
			p.skip(SkipEmptyProvider)
		} else {
			providers = append(providers, *current)
			p.stats.Providers++
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.stats.Total++

		switch {
		case strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#"):
			p.stats.Comments++

		case strings.HasPrefix(line, "["):
			closeCurrent()
			prov, ok := p.parseHeader(line)
			if !ok {
				continue
			}
			if seen[prov.ID] {
				p.skip(SkipDuplicateID)
				continue
			}
			seen[prov.ID] = true
			current = &prov

		default:
			if current == nil {
				p.skip(SkipOrphanRule)
				continue
			}
			if provider.IsRegexPattern(line) && !provider.ValidateRegex(provider.PatternToRegex(line)) {
				p.skip(SkipInvalidRegex)
				continue
			}
			current.Patterns = append(current.Patterns, line)
			p.stats.Rules++
		}
	}
	closeCurrent()

	return providers, scanner.Err()
}

// parseHeader parses "[id] Display Name $option,option"
func (p *Parser) parseHeader(line string) (models.Provider, bool) {
	end := strings.Index(line, "]")
	if end < 2 {
		p.skip(SkipInvalidHeader)
		return models.Provider{}, false
	}

	id := strings.ToLower(strings.TrimSpace(line[1:end]))
	if id == "" || strings.ContainsAny(id, " \t") {
		p.skip(SkipInvalidHeader)
		return models.Provider{}, false
	}

	prov := models.Provider{ID: id}
	rest := line[end+1:]

	if idx := strings.LastIndex(rest, "$"); idx != -1 {
		p.parseOptions(&prov, rest[idx+1:])
		rest = rest[:idx]
	}

	prov.Name = strings.TrimSpace(rest)
	if prov.Name == "" {
		prov.Name = id
	}
	return prov, true
}

// parseOptions parses header options such as logo=...,logo-width=48
func (p *Parser) parseOptions(prov *models.Provider, s string) {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "logo":
			prov.Logo = value
		case "logo-width":
			prov.LogoWidth = parseDimension(value)
		case "logo-height":
			prov.LogoHeight = parseDimension(value)
		default:
			p.skip(SkipUnknownOption)
		}
	}
}

func parseDimension(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
