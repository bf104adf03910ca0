package models

// GenericProvider is the fallback provider ID. It has no rules and matches
// any URL no other provider claims.
const GenericProvider = "generic"

// Provider represents an external content source
type Provider struct {
	ID         string   `mapstructure:"id" json:"id,omitempty"`
	Name       string   `mapstructure:"name" json:"name"`
	Patterns   []string `mapstructure:"patterns" json:"patterns"`
	Logo       string   `mapstructure:"logo" json:"logo,omitempty"`
	LogoWidth  int      `mapstructure:"logo_width" json:"logoWidth,omitempty"`
	LogoHeight int      `mapstructure:"logo_height" json:"logoHeight,omitempty"`
}

// HasLogo returns true if a branding asset is set
func (p Provider) HasLogo() bool {
	return p.Logo != ""
}
