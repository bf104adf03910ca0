package gate

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/consent"
	"github.com/bnema/embed-consent/internal/dimension"
	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/i18n"
	"github.com/bnema/embed-consent/internal/lifecycle"
	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/metrics"
	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/overlay"
	"github.com/bnema/embed-consent/internal/provider"
)

// Deps are the collaborators of a Controller. Nil fields get defaults:
// built-in providers only, no storage, a visible page.
type Deps struct {
	Classifier *provider.Classifier
	Store      *consent.Store
	Lifecycle  *lifecycle.Coordinator
	Renderer   *overlay.Renderer
	Localizer  *i18n.Localizer
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Candidate is an element that passed the preconditions, with everything
// measured before the document is touched.
type Candidate struct {
	Element  *dom.Element
	Source   string
	Provider models.Provider
	Dims     dimension.Dimensions
}

// Controller builds gates and drives their transitions. It is not safe for
// concurrent use.
type Controller struct {
	doc        *dom.Document
	cfg        models.EmbedConfig
	exclude    []cascadia.Matcher
	classifier *provider.Classifier
	store      *consent.Store
	lifecycle  *lifecycle.Coordinator
	renderer   *overlay.Renderer
	localizer  *i18n.Localizer
	metrics    *metrics.Metrics
	log        *zap.Logger

	gates []*Gate
}

// NewController creates a controller for doc. cfg.Language must already be
// resolved; invalid exclusion selectors are logged and ignored.
func NewController(doc *dom.Document, cfg models.EmbedConfig, deps Deps) *Controller {
	log := logging.OrNop(deps.Logger).Named("gate")

	c := &Controller{
		doc:        doc,
		cfg:        cfg,
		classifier: deps.Classifier,
		store:      deps.Store,
		lifecycle:  deps.Lifecycle,
		renderer:   deps.Renderer,
		localizer:  deps.Localizer,
		metrics:    deps.Metrics,
		log:        log,
	}
	if c.classifier == nil {
		c.classifier = provider.New(cfg.Providers, log)
	}
	if c.store == nil {
		c.store = consent.NewStore(nil, "", log)
	}
	if c.lifecycle == nil {
		c.lifecycle = lifecycle.NewCoordinator(lifecycle.Initial(), log)
	}
	if c.renderer == nil {
		c.renderer = overlay.NewRenderer()
	}
	if c.localizer == nil {
		c.localizer = i18n.MustLocalizer()
	}

	sels, err := dom.CompileSelectors(cfg.ExcludeSelectors)
	if err != nil {
		log.Warn("ignoring invalid exclude selectors", zap.Error(err))
	}
	c.exclude = sels
	return c
}

// Gates returns the gates built so far, in creation order
func (c *Controller) Gates() []*Gate {
	out := make([]*Gate, len(c.gates))
	copy(out, c.gates)
	return out
}

// Lookup finds the gate owning el. el may be the gated element, its wrapper
// or anything inside the wrapper.
func (c *Controller) Lookup(el *dom.Element) (*Gate, error) {
	if el == nil {
		return nil, ErrNotGated
	}
	wrapper := el.Closest(models.ClassWrapper)
	for _, g := range c.gates {
		if g.Element.Node() == el.Node() {
			return g, nil
		}
		if wrapper != nil && g.Wrapper.Node() == wrapper.Node() {
			return g, nil
		}
	}
	return nil, ErrNotGated
}

// pendingSource is the first non-empty of live source, lazy source and a
// previously withheld source.
func pendingSource(el *dom.Element) string {
	for _, attr := range []string{models.AttrSrc, models.AttrLazySrc, models.AttrWithheldSrc} {
		if v := el.AttrOr(attr, ""); v != "" {
			return v
		}
	}
	return ""
}

func (c *Controller) skip(reason Skip) error {
	c.metrics.RecordSkip(string(reason))
	return &SkipError{Reason: reason}
}

// Prepare checks the preconditions, marks the element processed and takes
// every measurement. It does not otherwise modify the document.
func (c *Controller) Prepare(el *dom.Element) (*Candidate, error) {
	if el.Closest(models.ClassWrapper) != nil {
		return nil, c.skip(SkipInsideGate)
	}
	if _, ok := el.Attr(models.AttrProcessed); ok {
		return nil, c.skip(SkipProcessed)
	}
	if el.MatchesAny(c.exclude) {
		return nil, c.skip(SkipExcluded)
	}
	src := pendingSource(el)
	if src == "" {
		return nil, c.skip(SkipNoSource)
	}

	el.SetAttr(models.AttrProcessed, "true")

	id := c.classifier.Classify(src)
	p, ok := c.classifier.Provider(id)
	if !ok {
		p = models.Provider{ID: id}
	}

	return &Candidate{
		Element:  el,
		Source:   src,
		Provider: p,
		Dims:     dimension.Resolve(el),
	}, nil
}

func (c *Controller) overlaySpec(p models.Provider) overlay.Spec {
	lang := c.cfg.Language
	t := c.localizer.Table(lang)
	return overlay.Spec{
		ProviderName:  c.localizer.ProviderName(lang, p),
		ConsentText:   c.localizer.ConsentText(lang, p),
		ButtonLabel:   t.ButtonLabel,
		PrivacyURL:    c.cfg.PrivacyPolicyURL,
		LearnMore:     t.LearnMore,
		ShowRemember:  c.cfg.RememberOptionEnabled(),
		RememberLabel: t.AlwaysAllowLabel,
		Logo:          p.Logo,
		LogoWidth:     p.LogoWidth,
		LogoHeight:    p.LogoHeight,
	}
}

func (c *Controller) newWrapper(id string, p models.Provider, d dimension.Dimensions) *dom.Element {
	w := c.doc.CreateElement("div")
	w.AddClass(models.ClassWrapper)
	w.SetAttr(models.AttrProvider, p.ID)
	w.SetAttr(models.AttrGateID, id)

	if d.HasAspectRatio() {
		w.SetAttr(models.AttrHasAspectRatio, "true")
		w.SetStyleProperty(models.StyleAspectPadding, dimension.FormatPercent(d.PaddingPercent()))
		w.SetStyleProperty(models.StyleAspectRatio, d.RatioCSS())
	} else {
		w.AddClass(models.ClassFixedHeight)
		w.SetStyleProperty(models.StyleFixedHeight, dimension.FormatPixels(d.Height))
	}
	return w
}

// autoload reports whether a standing preference covers new gates
func (c *Controller) autoload() bool {
	return c.cfg.EnableLocalStorage && c.store.Read()
}

// Apply builds the gate for a prepared candidate. The overlay is rendered
// before the element is touched, so a rendering failure leaves the element
// as it was.
func (c *Controller) Apply(cand *Candidate) (*Gate, error) {
	id := uuid.NewString()
	wrapper := c.newWrapper(id, cand.Provider, cand.Dims)

	ov, err := c.renderer.Build(c.doc, wrapper, c.overlaySpec(cand.Provider))
	if err != nil {
		return nil, fmt.Errorf("failed to build overlay for %s: %w", cand.Provider.ID, err)
	}

	g := &Gate{
		ID:       id,
		Element:  cand.Element,
		Wrapper:  wrapper,
		Overlay:  ov,
		Provider: cand.Provider,
		Dims:     cand.Dims,
		state:    Gated,
	}

	el := cand.Element
	el.SetAttr(models.AttrWithheldSrc, cand.Source)
	el.RemoveAttr(models.AttrSrc)
	el.RemoveAttr(models.AttrLazySrc)
	el.AddClass(models.ClassIframe)

	fast := c.autoload()
	if fast {
		g.setOverlayVisible(false)
	}

	el.Wrap(wrapper)
	wrapper.PrependChild(ov.Root)
	c.gates = append(c.gates, g)
	c.metrics.RecordCreated(g.Provider.ID, g.Dims.Mode.String())

	log := c.log.With(zap.String("gate", g.ID), zap.String("provider", g.Provider.ID))
	if fast {
		if err := g.release(); err != nil {
			return g, err
		}
		c.metrics.RecordAutoload(g.Provider.ID)
		log.Debug("gate autoloaded by stored preference")
		return g, nil
	}

	log.Debug("gate created", zap.Stringer("mode", g.Dims.Mode))
	return g, nil
}

// Gate runs Prepare and Apply for a single element
func (c *Controller) Gate(el *dom.Element) (*Gate, error) {
	cand, err := c.Prepare(el)
	if err != nil {
		return nil, err
	}
	return c.Apply(cand)
}

// Confirm handles activation of a gate's confirm control. The preference is
// saved when the remember control is checked and persistence is enabled;
// the load itself is subject to lifecycle arbitration.
func (c *Controller) Confirm(g *Gate) error {
	if g.state == Active {
		return nil
	}

	if c.cfg.RememberOptionEnabled() && g.RememberChecked() {
		ok := c.store.Write(true)
		c.metrics.RecordConsentWrite(true, ok)
		if !ok {
			c.log.Warn("failed to persist always-allow preference", zap.String("gate", g.ID))
		}
	}

	return c.tryLoad(g)
}

func (c *Controller) tryLoad(g *Gate) error {
	log := c.log.With(zap.String("gate", g.ID), zap.String("provider", g.Provider.ID))

	state := c.lifecycle.State()
	if !state.CanLoad() {
		if g.state != PendingLoad {
			g.state = PendingLoad
			g.setPending(true)
			c.metrics.RecordDeferred(state.Blocker())
			log.Debug("load deferred", zap.String("blocker", state.Blocker()))
		}
		c.updatePending()
		return nil
	}

	if err := g.release(); err != nil {
		log.Error("failed to release gate", zap.Error(err))
		return err
	}
	c.metrics.RecordActivated(g.Provider.ID)
	c.updatePending()
	log.Debug("gate activated")
	return nil
}

// Reevaluate retries every pending gate. It returns how many became active.
func (c *Controller) Reevaluate() int {
	if !c.lifecycle.CanLoad() {
		return 0
	}
	n := 0
	for _, g := range c.gates {
		if g.state != PendingLoad {
			continue
		}
		if err := c.tryLoad(g); err == nil && g.state == Active {
			n++
		}
	}
	return n
}

// RestoreFromCache reconciles gates after a back/forward cache restore:
// without a standing preference every active gate is withdrawn. Pending
// gates are re-evaluated afterwards. It returns how many gates rolled back.
func (c *Controller) RestoreFromCache() int {
	n := 0
	if !c.autoload() {
		for _, g := range c.gates {
			if g.state != Active {
				continue
			}
			g.withdraw()
			c.metrics.RecordRollback()
			c.log.Debug("gate rolled back after cache restore", zap.String("gate", g.ID))
			n++
		}
	}
	c.Reevaluate()
	return n
}

// Pending counts gates waiting for lifecycle conditions
func (c *Controller) Pending() int {
	n := 0
	for _, g := range c.gates {
		if g.state == PendingLoad {
			n++
		}
	}
	return n
}

func (c *Controller) updatePending() {
	c.metrics.SetPending(c.Pending())
}

// Store returns the consent store
func (c *Controller) Store() *consent.Store {
	return c.store
}

// Lifecycle returns the lifecycle coordinator
func (c *Controller) Lifecycle() *lifecycle.Coordinator {
	return c.lifecycle
}
