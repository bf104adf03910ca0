// Package discovery finds embeddable elements at start-up and as they are
// inserted, and feeds them to the gate controller in coalesced batches.
package discovery

import (
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/gate"
	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/metrics"
	"github.com/bnema/embed-consent/internal/models"
)

// Options configures an Engine
type Options struct {
	// Debounce is the coalescing window for insertion batches
	Debounce time.Duration
	// Locker serializes deferred processing with the rest of the page.
	// ScanAll, Process and Flush expect the caller to hold it.
	Locker  sync.Locker
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Engine discovers candidates and hands them to a gate.Controller
type Engine struct {
	doc      *dom.Document
	ctrl     *gate.Controller
	debounce time.Duration
	locker   sync.Locker
	metrics  *metrics.Metrics
	log      *zap.Logger

	mu        sync.Mutex
	queue     []*html.Node
	queued    map[*html.Node]struct{}
	timer     *time.Timer
	unobserve func()
	stopped   bool
}

// New creates an engine for doc
func New(doc *dom.Document, ctrl *gate.Controller, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = models.DefaultDebounce
	}
	if opts.Locker == nil {
		opts.Locker = &sync.Mutex{}
	}
	return &Engine{
		doc:      doc,
		ctrl:     ctrl,
		debounce: opts.Debounce,
		locker:   opts.Locker,
		metrics:  opts.Metrics,
		log:      logging.OrNop(opts.Logger).Named("discovery"),
		queued:   make(map[*html.Node]struct{}),
	}
}

// ScanAll gates every embeddable element currently in the document
func (e *Engine) ScanAll() []*gate.Gate {
	return e.Process(e.doc.Find(models.EmbeddableSelector))
}

// Process gates candidates in two passes: every precondition check and
// measurement first, then every document write. A fault on one element is
// logged and does not stop the others.
func (e *Engine) Process(els []*dom.Element) []*gate.Gate {
	if len(els) == 0 {
		return nil
	}
	e.metrics.ObserveBatch(len(els))

	cands := make([]*gate.Candidate, 0, len(els))
	for _, el := range els {
		var cand *gate.Candidate
		err := e.guard(el, "prepare", func() error {
			var err error
			cand, err = e.ctrl.Prepare(el)
			return err
		})
		if err == nil && cand != nil {
			cands = append(cands, cand)
		}
	}

	gates := make([]*gate.Gate, 0, len(cands))
	for _, cand := range cands {
		var g *gate.Gate
		err := e.guard(cand.Element, "apply", func() error {
			var err error
			g, err = e.ctrl.Apply(cand)
			return err
		})
		if err == nil && g != nil {
			gates = append(gates, g)
		}
	}

	e.log.Debug("processed candidates",
		zap.Int("candidates", len(els)),
		zap.Int("gated", len(gates)))
	return gates
}

// guard runs fn for one element, converting panics into errors. Skips are
// logged at debug level, faults at error level.
func (e *Engine) guard(el *dom.Element, step string, fn func() error) error {
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = fn() })
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("panic during %s: %w", step, r.AsError())
	}
	if err == nil {
		return nil
	}

	src := el.AttrOr(models.AttrSrc, el.AttrOr(models.AttrWithheldSrc, el.AttrOr(models.AttrLazySrc, "")))
	if gate.IsSkip(err) {
		e.log.Debug("element skipped", zap.String("src", src), zap.Error(err))
		return err
	}
	e.metrics.RecordError()
	e.log.Error("failed to gate element",
		zap.String("step", step),
		zap.String("src", src),
		zap.String("gate", el.AttrOr(models.AttrGateID, "")),
		zap.Error(err))
	return err
}

// ObserveInsertions starts watching the document for inserted embeds
func (e *Engine) ObserveInsertions() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unobserve != nil || e.stopped {
		return
	}
	e.unobserve = e.doc.Observe(e.onMutations)
}

// onMutations queues inserted embeds and their embeddable descendants.
// Wrappers built by the controller are skipped.
func (e *Engine) onMutations(records []dom.MutationRecord) {
	var found []*html.Node
	for _, rec := range records {
		for _, n := range rec.Added {
			if n.Type != html.ElementNode {
				continue
			}
			el := e.doc.Element(n)
			if el.HasClass(models.ClassWrapper) {
				continue
			}
			if el.Is(models.EmbeddableSelector) {
				found = append(found, n)
			}
			for _, d := range el.Find(models.EmbeddableSelector) {
				found = append(found, d.Node())
			}
		}
	}
	if len(found) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	for _, n := range found {
		if _, ok := e.queued[n]; ok {
			continue
		}
		e.queued[n] = struct{}{}
		e.queue = append(e.queue, n)
	}
	// The window is not extended by later batches.
	if e.timer == nil {
		e.timer = time.AfterFunc(e.debounce, e.fire)
	}
}

func (e *Engine) fire() {
	e.locker.Lock()
	defer e.locker.Unlock()
	e.Flush()
}

// drain takes the queued nodes and cancels the pending timer
func (e *Engine) drain() []*html.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	q := e.queue
	e.queue = nil
	e.queued = make(map[*html.Node]struct{})
	return q
}

// Pending reports how many inserted candidates wait for processing
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Flush processes queued insertions immediately
func (e *Engine) Flush() []*gate.Gate {
	nodes := e.drain()
	els := make([]*dom.Element, 0, len(nodes))
	for _, n := range nodes {
		el := e.doc.Element(n)
		if !el.Attached() {
			continue
		}
		els = append(els, el)
	}
	return e.Process(els)
}

// Stop disconnects the observer and drops queued insertions
func (e *Engine) Stop() {
	e.mu.Lock()
	unobserve := e.unobserve
	e.unobserve = nil
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.queue = nil
	e.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
}
