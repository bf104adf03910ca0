// Package overlay renders the consent UI placed over a gated embed.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/models"
)

// ErrNoConfirmControl is returned when rendered markup lacks a confirm button
var ErrNoConfirmControl = errors.New("overlay has no confirm control")

// Spec describes one overlay
type Spec struct {
	ProviderName  string
	ConsentText   string
	ButtonLabel   string
	PrivacyURL    string
	LearnMore     string
	ShowRemember  bool
	RememberLabel string
	Logo          string
	LogoWidth     int
	LogoHeight    int
}

// Overlay is an attachable overlay subtree with its controls
type Overlay struct {
	Root     *dom.Element
	Confirm  *dom.Element
	Remember *dom.Element
}

const markup = `<div class="embed-consent-overlay">
<div class="embed-consent-content">
{{- if .Logo}}
<div class="embed-consent-icon"><img src="{{.Logo}}" alt="{{.ProviderName}}"{{if .LogoWidth}} width="{{.LogoWidth}}"{{end}}{{if .LogoHeight}} height="{{.LogoHeight}}"{{end}}></div>
{{- end}}
<p class="embed-consent-text"><strong>{{.ProviderName}}</strong><br>{{.ConsentText}}
{{- if .PrivacyURL}}<br><a href="{{.PrivacyURL}}" class="embed-consent-privacy-link">{{.LearnMore}}</a>{{end -}}
</p>
<div class="embed-consent-actions">
{{- if .ShowRemember}}
<label class="embed-consent-checkbox"><input type="checkbox" class="embed-consent-checkbox-input"><span class="embed-consent-checkbox-label">{{.RememberLabel}}</span></label>
{{- end}}
<button type="button" class="embed-consent-button">{{.ButtonLabel}}</button>
</div>
</div>
</div>`

// Renderer turns Specs into sanitized overlay subtrees
type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer with the default markup
func NewRenderer() *Renderer {
	return &Renderer{
		tmpl:   template.Must(template.New("overlay").Parse(markup)),
		policy: newPolicy(),
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements("div", "p", "strong", "br", "label", "span", "button", "input")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("type").OnElements("button", "input")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")
	return p
}

// Markup renders the sanitized overlay HTML for s
func (r *Renderer) Markup(s Spec) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to render overlay: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Build renders s into detached elements of doc. ctx is the element the
// overlay will be attached to.
func (r *Renderer) Build(doc *dom.Document, ctx *dom.Element, s Spec) (*Overlay, error) {
	out, err := r.Markup(s)
	if err != nil {
		return nil, err
	}
	nodes, err := doc.ParseFragment(ctx, out)
	if err != nil {
		return nil, err
	}

	var root *dom.Element
	for _, n := range nodes {
		if n.HasClass(models.ClassOverlay) {
			root = n
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("overlay root %q missing from rendered markup", models.ClassOverlay)
	}

	o := &Overlay{
		Root:     root,
		Confirm:  root.FindClass(models.ClassConfirm),
		Remember: root.FindClass(models.ClassRemember),
	}
	if o.Confirm == nil {
		return nil, ErrNoConfirmControl
	}
	return o, nil
}
