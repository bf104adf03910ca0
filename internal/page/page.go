// Package page is the context object for one document: it owns the
// configuration, the lifecycle state and the gates, and is the single entry
// point for platform events and user actions.
package page

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/consent"
	"github.com/bnema/embed-consent/internal/discovery"
	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/gate"
	"github.com/bnema/embed-consent/internal/i18n"
	"github.com/bnema/embed-consent/internal/lifecycle"
	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/metrics"
	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/overlay"
	"github.com/bnema/embed-consent/internal/pageconfig"
	"github.com/bnema/embed-consent/internal/provider"
)

// Version identifies the engine release
const Version = "2.0.0"

// ErrNoElement is returned when a selector matches nothing
var ErrNoElement = errors.New("no element matches selector")

type options struct {
	store     *consent.Store
	metrics   *metrics.Metrics
	logger    *zap.Logger
	initial   lifecycle.State
	debounce  time.Duration
	readPage  bool
	providers []models.Provider
}

// Option configures a Page
type Option func(*options)

// WithStore sets the consent store. Without one the page behaves as if
// storage were unavailable.
func WithStore(s *consent.Store) Option {
	return func(o *options) { o.store = s }
}

// WithMetrics records gate transitions into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithInitialState sets the lifecycle state at construction, e.g. a page
// that starts prerendered or in a background tab.
func WithInitialState(s lifecycle.State) Option {
	return func(o *options) { o.initial = s }
}

// WithDebounce sets the insertion coalescing window
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithPageConfig controls whether configuration published by the document
// (meta tag, root data attributes) is layered over the given config.
func WithPageConfig(enabled bool) Option {
	return func(o *options) { o.readPage = enabled }
}

// WithProviders appends providers after the configured custom ones, still
// ahead of the built-ins.
func WithProviders(ps []models.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, ps...) }
}

// Page is the per-document context. All methods are safe for concurrent
// use; they serialize on a single lock shared with deferred discovery.
type Page struct {
	mu sync.Mutex

	doc        *dom.Document
	cfg        models.EmbedConfig
	store      *consent.Store
	life       *lifecycle.Coordinator
	classifier *provider.Classifier
	localizer  *i18n.Localizer
	ctrl       *gate.Controller
	engine     *discovery.Engine
	metrics    *metrics.Metrics
	log        *zap.Logger
	started    bool
}

// New builds the context for doc. Nothing is gated until Start.
func New(doc *dom.Document, cfg models.EmbedConfig, opts ...Option) (*Page, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}

	o := options{
		initial:  lifecycle.Initial(),
		debounce: models.DefaultDebounce,
		readPage: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.logger)

	if o.readPage {
		cfg = pageconfig.Acquire(doc, cfg, log)
	}
	if len(o.providers) > 0 {
		cfg.Providers = append(append([]models.Provider{}, cfg.Providers...), o.providers...)
	}
	if cfg.Language == "" {
		cfg.Language = i18n.DefaultLanguage
	}

	loc, err := i18n.NewLocalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	if o.store == nil {
		o.store = consent.NewStore(nil, "", log)
	}

	p := &Page{
		doc:        doc,
		cfg:        cfg,
		store:      o.store,
		life:       lifecycle.NewCoordinator(o.initial, log.Named("lifecycle")),
		classifier: provider.New(cfg.Providers, log),
		localizer:  loc,
		metrics:    o.metrics,
		log:        log.Named("page"),
	}
	p.ctrl = gate.NewController(doc, cfg, gate.Deps{
		Classifier: p.classifier,
		Store:      p.store,
		Lifecycle:  p.life,
		Renderer:   overlay.NewRenderer(),
		Localizer:  p.localizer,
		Metrics:    p.metrics,
		Logger:     log,
	})
	p.engine = discovery.New(doc, p.ctrl, discovery.Options{
		Debounce: o.debounce,
		Locker:   &p.mu,
		Metrics:  p.metrics,
		Logger:   log,
	})
	return p, nil
}

// Start is the document-ready step: gate everything present and watch for
// insertions. Calling it again is a no-op.
func (p *Page) Start() []*gate.Gate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true

	gates := p.engine.ScanAll()
	p.engine.ObserveInsertions()
	p.log.Info("embed consent started",
		zap.String("version", Version),
		zap.String("language", p.cfg.Language),
		zap.Int("gates", len(gates)))
	return gates
}

// Stop disconnects the insertion watcher
func (p *Page) Stop() {
	p.engine.Stop()
}

// DispatchResult summarizes the effect of one lifecycle event
type DispatchResult struct {
	State      lifecycle.State
	RolledBack int
	Activated  int
}

// Dispatch applies a lifecycle event and re-evaluates pending gates
func (p *Page) Dispatch(ev lifecycle.Event) DispatchResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.life.Apply(ev)
	res := DispatchResult{State: t.After}
	pendingBefore := p.ctrl.Pending()
	if t.Restored() {
		res.RolledBack = p.ctrl.RestoreFromCache()
		res.Activated = pendingBefore - p.ctrl.Pending()
	} else {
		res.Activated = p.ctrl.Reevaluate()
	}
	return res
}

// Confirm activates the confirm control of the gate owning el. remember
// checks the remember control first, when it is offered.
func (p *Page) Confirm(el *dom.Element, remember bool) (*gate.Gate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirm(el, remember)
}

// ConfirmSelector is Confirm for the first element matching selector
func (p *Page) ConfirmSelector(selector string, remember bool) (*gate.Gate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el := p.doc.First(selector)
	if el == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return p.confirm(el, remember)
}

func (p *Page) confirm(el *dom.Element, remember bool) (*gate.Gate, error) {
	g, err := p.ctrl.Lookup(el)
	if err != nil {
		return nil, err
	}
	if remember {
		g.SetRemember(true)
	}
	if err := p.ctrl.Confirm(g); err != nil {
		return g, err
	}
	return g, nil
}

// Insert appends markup to the first element matching parent. New embeds
// are picked up by the insertion watcher.
func (p *Page) Insert(parent, markup string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	el := p.doc.First(parent)
	if el == nil {
		return fmt.Errorf("%w: %s", ErrNoElement, parent)
	}
	return p.doc.AppendHTML(el, markup)
}

// Flush processes queued insertions without waiting for the debounce
func (p *Page) Flush() []*gate.Gate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Flush()
}

// Gates returns every gate in creation order
func (p *Page) Gates() []*gate.Gate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctrl.Gates()
}

// Summary counts gates by state
func (p *Page) Summary() map[gate.State]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[gate.State]int)
	for _, g := range p.ctrl.Gates() {
		out[g.State()]++
	}
	return out
}

// State returns the current lifecycle state
func (p *Page) State() lifecycle.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.life.State()
}

// Config returns the effective configuration
func (p *Page) Config() models.EmbedConfig {
	return p.cfg
}

// Classifier returns the provider classifier in use
func (p *Page) Classifier() *provider.Classifier {
	return p.classifier
}

// HTML renders the document
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.HTML()
}

// ResetResult reports the outcome of Reset
type ResetResult struct {
	Available  bool
	HadConsent bool
	Message    string
}

// Reset clears the stored preference
func (p *Page) Reset() ResetResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Reset(p.store, p.localizer, p.cfg.Language)
}

// Status is the answer to a status query
type Status struct {
	Available bool
	Consent   bool
	Message   string
}

// Status reports storage availability and the stored preference
func (p *Page) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return QueryStatus(p.store, p.localizer, p.cfg.Language)
}

// Reset clears the preference in store, with messages in lang
func Reset(store *consent.Store, loc *i18n.Localizer, lang string) ResetResult {
	msgs := loc.Table(lang).Messages
	if !store.Available() {
		return ResetResult{Message: msgs.StorageUnavailable}
	}
	had := store.Read()
	store.Write(false)

	res := ResetResult{Available: true, HadConsent: had, Message: msgs.ResetNone}
	if had {
		res.Message = msgs.ResetDone
	}
	return res
}

// QueryStatus reports the preference in store, with messages in lang
func QueryStatus(store *consent.Store, loc *i18n.Localizer, lang string) Status {
	msgs := loc.Table(lang).Messages
	if !store.Available() {
		return Status{Message: msgs.StorageUnavailable}
	}
	if store.Read() {
		return Status{Available: true, Consent: true, Message: msgs.StatusAutoload}
	}
	return Status{Available: true, Message: msgs.StatusRequired}
}
