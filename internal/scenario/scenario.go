// Package scenario replays scripted lifecycle events and user actions
// against a page.
package scenario

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bnema/embed-consent/internal/gate"
	"github.com/bnema/embed-consent/internal/lifecycle"
	"github.com/bnema/embed-consent/internal/page"
)

// Scenario is an ordered list of steps
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one action. Exactly one of Event, Confirm, Insert or Flush is set.
type Step struct {
	Event     string  `yaml:"event,omitempty"`
	Visible   *bool   `yaml:"visible,omitempty"`
	Persisted bool    `yaml:"persisted,omitempty"`
	Confirm   string  `yaml:"confirm,omitempty"`
	Remember  bool    `yaml:"remember,omitempty"`
	Insert    *Insert `yaml:"insert,omitempty"`
	Flush     bool    `yaml:"flush,omitempty"`
}

// Insert appends HTML under the element matching Parent
type Insert struct {
	Parent string `yaml:"parent"`
	HTML   string `yaml:"html"`
}

// Result records the outcome of one step
type Result struct {
	Index   int
	Action  string
	Detail  string
	Summary map[gate.State]int
}

// Load decodes and validates a scenario
func Load(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &s, nil
}

func (s Step) action() string {
	switch {
	case s.Event != "":
		return "event"
	case s.Confirm != "":
		return "confirm"
	case s.Insert != nil:
		return "insert"
	case s.Flush:
		return "flush"
	default:
		return ""
	}
}

func (s Step) validate() error {
	n := 0
	for _, set := range []bool{s.Event != "", s.Confirm != "", s.Insert != nil, s.Flush} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one action, got %d", n)
	}
	if s.Event != "" {
		kind, err := lifecycle.ParseKind(s.Event)
		if err != nil {
			return err
		}
		if kind == lifecycle.VisibilityChange && s.Visible == nil {
			return errors.New("visibility event requires visible")
		}
	}
	if s.Insert != nil && s.Insert.Parent == "" {
		return errors.New("insert requires parent")
	}
	return nil
}

// lifecycleEvent converts an event step. The step must be valid.
func (s Step) lifecycleEvent() lifecycle.Event {
	kind, _ := lifecycle.ParseKind(s.Event)
	ev := lifecycle.Event{Kind: kind, Persisted: s.Persisted}
	if s.Visible != nil {
		ev.Visible = *s.Visible
	}
	return ev
}

// Run executes every step against p. It stops at the first failing step.
func Run(p *page.Page, s *Scenario) ([]Result, error) {
	results := make([]Result, 0, len(s.Steps))
	for i, step := range s.Steps {
		res := Result{Index: i + 1, Action: step.action()}

		switch res.Action {
		case "event":
			d := p.Dispatch(step.lifecycleEvent())
			res.Detail = fmt.Sprintf("%s: activated=%d rolled_back=%d can_load=%t",
				step.Event, d.Activated, d.RolledBack, d.State.CanLoad())
		case "confirm":
			g, err := p.ConfirmSelector(step.Confirm, step.Remember)
			if err != nil {
				return results, fmt.Errorf("step %d: confirm %s: %w", res.Index, step.Confirm, err)
			}
			res.Detail = fmt.Sprintf("%s: %s", step.Confirm, g.State())
		case "insert":
			if err := p.Insert(step.Insert.Parent, step.Insert.HTML); err != nil {
				return results, fmt.Errorf("step %d: insert: %w", res.Index, err)
			}
			res.Detail = step.Insert.Parent
		case "flush":
			res.Detail = fmt.Sprintf("gated=%d", len(p.Flush()))
		default:
			return results, fmt.Errorf("step %d: no action", res.Index)
		}

		res.Summary = p.Summary()
		results = append(results, res)
	}
	return results, nil
}
