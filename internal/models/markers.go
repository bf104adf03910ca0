package models

// Element attributes written and read by the engine
const (
	AttrSrc            = "src"
	AttrLazySrc        = "data-src"
	AttrWithheldSrc    = "data-consent-src"
	AttrProcessed      = "data-consent-processed"
	AttrPendingLoad    = "data-consent-pending"
	AttrHasAspectRatio = "data-consent-aspect-ratio"
	AttrProvider       = "data-provider"
	AttrGateID         = "data-consent-gate"
	AttrWidth          = "width"
	AttrHeight         = "height"
	AttrHidden         = "hidden"
	AttrChecked        = "checked"
)

// Class names used for styling hooks and control lookup
const (
	ClassWrapper     = "embed-consent-wrapper"
	ClassIframe      = "embed-consent-iframe"
	ClassActive      = "embed-consent-active"
	ClassOverlay     = "embed-consent-overlay"
	ClassConfirm     = "embed-consent-button"
	ClassRemember    = "embed-consent-checkbox-input"
	ClassFixedHeight = "embed-consent-fixed-height"
	ClassPrivacyLink = "embed-consent-privacy-link"
)

// Wrapper style custom properties
const (
	StyleAspectPadding = "--aspect-ratio-padding"
	StyleAspectRatio   = "--iframe-aspect-ratio"
	StyleFixedHeight   = "--fixed-height"
)

// EmbeddableSelector selects elements that can host external content
const EmbeddableSelector = "iframe"
