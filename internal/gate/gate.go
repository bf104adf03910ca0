// Package gate implements the per-embed consent state machine and the
// controller that builds gates around embeddable elements.
package gate

import (
	"errors"

	"github.com/bnema/embed-consent/internal/dimension"
	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/overlay"
)

// State of a gate
type State int

const (
	// Gated withholds the network load and shows the overlay
	Gated State = iota
	// PendingLoad is confirmed but waiting for lifecycle conditions
	PendingLoad
	// Active has released the network load
	Active
)

func (s State) String() string {
	switch s {
	case Gated:
		return "gated"
	case PendingLoad:
		return "pending-load"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

var (
	// ErrNoPendingSource is returned when there is no URL to gate or release
	ErrNoPendingSource = errors.New("no pending source")
	// ErrNotGated is returned for elements the controller does not own
	ErrNotGated = errors.New("element is not gated")
)

// Skip is the reason a candidate element was not gated
type Skip string

const (
	SkipInsideGate Skip = "inside-gate"
	SkipProcessed  Skip = "processed"
	SkipExcluded   Skip = "excluded"
	SkipNoSource   Skip = "no-source"
)

// SkipError reports a candidate that did not meet the gating preconditions.
// It is not a fault.
type SkipError struct {
	Reason Skip
}

func (e *SkipError) Error() string {
	return "element skipped: " + string(e.Reason)
}

// Unwrap lets callers test for ErrNoPendingSource
func (e *SkipError) Unwrap() error {
	if e.Reason == SkipNoSource {
		return ErrNoPendingSource
	}
	return nil
}

// IsSkip reports whether err is a SkipError
func IsSkip(err error) bool {
	var s *SkipError
	return errors.As(err, &s)
}

// Gate is the wrapper around one embeddable element. It lives as long as
// the element and is never shared.
type Gate struct {
	ID       string
	Element  *dom.Element
	Wrapper  *dom.Element
	Overlay  *overlay.Overlay
	Provider models.Provider
	Dims     dimension.Dimensions

	state State
}

// State returns the current state
func (g *Gate) State() State {
	return g.state
}

// Source returns the withheld URL
func (g *Gate) Source() string {
	return g.Element.AttrOr(models.AttrWithheldSrc, "")
}

// HasRemember reports whether the overlay offers the remember control
func (g *Gate) HasRemember() bool {
	return g.Overlay != nil && g.Overlay.Remember != nil
}

// SetRemember checks or unchecks the remember control, if present
func (g *Gate) SetRemember(checked bool) {
	if !g.HasRemember() {
		return
	}
	if checked {
		g.Overlay.Remember.SetAttr(models.AttrChecked, "")
	} else {
		g.Overlay.Remember.RemoveAttr(models.AttrChecked)
	}
}

// RememberChecked reports whether the remember control is checked
func (g *Gate) RememberChecked() bool {
	if !g.HasRemember() {
		return false
	}
	_, ok := g.Overlay.Remember.Attr(models.AttrChecked)
	return ok
}

func (g *Gate) setPending(pending bool) {
	for _, el := range []*dom.Element{g.Element, g.Wrapper} {
		if pending {
			el.SetAttr(models.AttrPendingLoad, "true")
		} else {
			el.RemoveAttr(models.AttrPendingLoad)
		}
	}
}

func (g *Gate) setOverlayVisible(visible bool) {
	if g.Overlay == nil {
		return
	}
	if visible {
		g.Overlay.Root.RemoveAttr(models.AttrHidden)
	} else {
		g.Overlay.Root.SetAttr(models.AttrHidden, "")
	}
}

// OverlayVisible reports whether the overlay is shown
func (g *Gate) OverlayVisible() bool {
	if g.Overlay == nil {
		return false
	}
	_, hidden := g.Overlay.Root.Attr(models.AttrHidden)
	return !hidden
}

// release puts the withheld URL back on the live source
func (g *Gate) release() error {
	src := g.Source()
	if src == "" {
		return ErrNoPendingSource
	}
	g.Element.SetAttr(models.AttrSrc, src)
	g.Wrapper.AddClass(models.ClassActive)
	g.setOverlayVisible(false)
	g.setPending(false)
	g.state = Active
	return nil
}

// withdraw removes the live source again and re-shows the overlay
func (g *Gate) withdraw() {
	g.Element.RemoveAttr(models.AttrSrc)
	g.Wrapper.RemoveClass(models.ClassActive)
	g.setOverlayVisible(true)
	g.setPending(false)
	g.SetRemember(false)
	g.state = Gated
}
