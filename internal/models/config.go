package models

import "time"

// Config represents the main configuration
type Config struct {
	Embed    EmbedConfig    `mapstructure:"embed"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Observer ObserverConfig `mapstructure:"observer"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

// EmbedConfig is the configuration consumed by the gating engine
type EmbedConfig struct {
	EnableLocalStorage    bool       `mapstructure:"enable_local_storage" json:"enableLocalStorage"`
	ShowAlwaysAllowOption bool       `mapstructure:"show_always_allow_option" json:"showAlwaysAllowOption"`
	Language              string     `mapstructure:"language" json:"language"`
	PrivacyPolicyURL      string     `mapstructure:"privacy_policy_url" json:"privacyPolicyUrl"`
	ExcludeSelectors      []string   `mapstructure:"exclude_selectors" json:"excludeSelectors"`
	Providers             []Provider `mapstructure:"providers" json:"-"`
	ProvidersFile         string     `mapstructure:"providers_file" json:"-"`
}

// StorageConfig selects the consent persistence backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // file, sqlite, memory, none
	Path   string `mapstructure:"path"`
	Origin string `mapstructure:"origin"`
}

// ObserverConfig contains insertion watcher settings
type ObserverConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Storage driver names
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverNone   = "none"
)

// DefaultDebounce is the coalescing window for insertion batches
const DefaultDebounce = 120 * time.Millisecond

// DefaultEmbedConfig returns the engine defaults
func DefaultEmbedConfig() EmbedConfig {
	return EmbedConfig{
		EnableLocalStorage:    true,
		ShowAlwaysAllowOption: true,
		Language:              "en",
		ExcludeSelectors:      []string{".no-consent", "[data-no-consent]"},
	}
}

// RememberOptionEnabled reports whether the "remember my choice" control may appear
func (c EmbedConfig) RememberOptionEnabled() bool {
	return c.EnableLocalStorage && c.ShowAlwaysAllowOption
}
