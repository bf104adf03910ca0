// Package lifecycle tracks the page signals that decide whether a confirmed
// embed may load right now.
package lifecycle

import (
	"fmt"

	"go.uber.org/zap"
)

// State is derived from platform signals and never persisted
type State struct {
	Visible      bool
	Prerendering bool
	Printing     bool
}

// Initial is the state of a freshly shown page
func Initial() State {
	return State{Visible: true}
}

// CanLoad reports whether a confirmed embed may fetch now
func (s State) CanLoad() bool {
	return s.Visible && !s.Prerendering && !s.Printing
}

// Blocker names the first condition preventing a load, or "" if none
func (s State) Blocker() string {
	switch {
	case s.Prerendering:
		return "prerendering"
	case !s.Visible:
		return "hidden"
	case s.Printing:
		return "printing"
	default:
		return ""
	}
}

// Kind is the type of a lifecycle signal
type Kind int

const (
	VisibilityChange Kind = iota
	PrerenderActivate
	BeforePrint
	AfterPrint
	PageShow
	PageHide
)

var kindNames = map[Kind]string{
	VisibilityChange:  "visibility",
	PrerenderActivate: "prerender-activate",
	BeforePrint:       "beforeprint",
	AfterPrint:        "afterprint",
	PageShow:          "pageshow",
	PageHide:          "pagehide",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps an event name to its Kind
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle event %q", name)
}

// Event is one platform signal. Visible is read for VisibilityChange,
// Persisted for PageShow and PageHide.
type Event struct {
	Kind      Kind
	Visible   bool
	Persisted bool
}

func Visibility(visible bool) Event { return Event{Kind: VisibilityChange, Visible: visible} }
func PrerenderActivated() Event     { return Event{Kind: PrerenderActivate} }
func PrintStarted() Event           { return Event{Kind: BeforePrint} }
func PrintEnded() Event             { return Event{Kind: AfterPrint} }
func Shown(persisted bool) Event    { return Event{Kind: PageShow, Persisted: persisted} }
func Hidden(persisted bool) Event   { return Event{Kind: PageHide, Persisted: persisted} }

// Transition is the outcome of applying one event
type Transition struct {
	Event  Event
	Before State
	After  State
}

// Unblocked reports whether loads became possible with this event
func (t Transition) Unblocked() bool {
	return !t.Before.CanLoad() && t.After.CanLoad()
}

// Restored reports a page shown again from the back/forward cache
func (t Transition) Restored() bool {
	return t.Event.Kind == PageShow && t.Event.Persisted
}

// Coordinator owns the lifecycle state. It is not safe for concurrent use.
type Coordinator struct {
	state State
	log   *zap.Logger
}

// NewCoordinator starts from initial
func NewCoordinator(initial State, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{state: initial, log: log}
}

// State returns the current state
func (c *Coordinator) State() State {
	return c.state
}

// CanLoad is State().CanLoad()
func (c *Coordinator) CanLoad() bool {
	return c.state.CanLoad()
}

// Apply folds ev into the state
func (c *Coordinator) Apply(ev Event) Transition {
	before := c.state
	switch ev.Kind {
	case VisibilityChange:
		c.state.Visible = ev.Visible
	case PrerenderActivate:
		c.state.Prerendering = false
	case BeforePrint:
		c.state.Printing = true
	case AfterPrint:
		c.state.Printing = false
	case PageShow:
		c.state.Visible = true
	case PageHide:
	}

	t := Transition{Event: ev, Before: before, After: c.state}
	c.log.Debug("lifecycle event",
		zap.Stringer("event", ev.Kind),
		zap.Bool("can_load", t.After.CanLoad()),
		zap.String("blocker", t.After.Blocker()),
		zap.Bool("restored", t.Restored()))
	return t
}
