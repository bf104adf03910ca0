package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bnema/embed-consent/internal/consent"
	"github.com/bnema/embed-consent/internal/dom"
	"github.com/bnema/embed-consent/internal/fetcher"
	"github.com/bnema/embed-consent/internal/gate"
	"github.com/bnema/embed-consent/internal/i18n"
	"github.com/bnema/embed-consent/internal/lifecycle"
	"github.com/bnema/embed-consent/internal/logging"
	"github.com/bnema/embed-consent/internal/metrics"
	"github.com/bnema/embed-consent/internal/models"
	"github.com/bnema/embed-consent/internal/page"
	"github.com/bnema/embed-consent/internal/parser"
	"github.com/bnema/embed-consent/internal/provider"
	"github.com/bnema/embed-consent/internal/scenario"
)

const defaultConfigPath = "./configs/embed_consent.toml"

var (
	cfgFile string
	cfg     models.Config
	log     *zap.Logger
	fs      = afero.NewOsFs()
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "embed-consent",
	Short: "Gate third-party iframe embeds behind a consent overlay",
	Long: `A tool that rewrites HTML pages so third-party iframes (video players,
maps, audio widgets) only load after the visitor consents, and replays
page lifecycle events against the gated page.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var gateCmd = &cobra.Command{
	Use:   "gate <file|url>",
	Short: "Gate every embed in an HTML document",
	Args:  cobra.ExactArgs(1),
	RunE:  runGate,
}

var classifyCmd = &cobra.Command{
	Use:   "classify <url>...",
	Short: "Print the provider detected for each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers in match order",
	RunE:  runProviders,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored always-allow preference",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored always-allow preference",
	RunE:  runReset,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(page.Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: "+defaultConfigPath+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-dev", false, "human-readable development logs")

	gateCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	gateCmd.Flags().String("events", "", "YAML scenario of lifecycle events and actions to replay")
	gateCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this textfile")
	gateCmd.Flags().Bool("hidden", false, "start with the page hidden")
	gateCmd.Flags().Bool("prerender", false, "start with the page prerendering")

	rootCmd.AddCommand(gateCmd, classifyCmd, providersCmd, statusCmd, resetCmd, initCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("embed_consent")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("EMBED_CONSENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	def := models.DefaultEmbedConfig()
	viper.SetDefault("embed.enable_local_storage", def.EnableLocalStorage)
	viper.SetDefault("embed.show_always_allow_option", def.ShowAlwaysAllowOption)
	viper.SetDefault("embed.language", "")
	viper.SetDefault("embed.privacy_policy_url", "")
	viper.SetDefault("embed.exclude_selectors", def.ExcludeSelectors)
	viper.SetDefault("embed.providers_file", "")
	viper.SetDefault("storage.driver", models.DriverFile)
	viper.SetDefault("storage.path", "")
	viper.SetDefault("storage.origin", "")
	viper.SetDefault("observer.debounce", models.DefaultDebounce.String())
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

func setupLogger(cmd *cobra.Command, args []string) error {
	lc := logging.FromModel(cfg.Log)
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		lc.Level = level
	}
	if dev, _ := cmd.Flags().GetBool("log-dev"); dev {
		lc.Development = true
	}

	l, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log = l
	return nil
}

// readSource loads a document or list from a URL or a local path
func readSource(ctx context.Context, src string) ([]byte, error) {
	if fetcher.IsURL(src) {
		return fetcher.New(cfg.HTTP, log).Fetch(ctx, src)
	}
	return afero.ReadFile(fs, src)
}

// loadProviderFile parses embed.providers_file, if configured
func loadProviderFile(ctx context.Context) ([]models.Provider, parser.Stats, error) {
	if cfg.Embed.ProvidersFile == "" {
		return nil, parser.Stats{}, nil
	}
	data, err := readSource(ctx, cfg.Embed.ProvidersFile)
	if err != nil {
		return nil, parser.Stats{}, fmt.Errorf("failed to read providers file: %w", err)
	}

	p := parser.New()
	providers, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, parser.Stats{}, fmt.Errorf("failed to parse providers file: %w", err)
	}
	stats := p.Stats()
	for reason, count := range stats.SkipReasons {
		log.Warn("skipped provider list lines", zap.String("reason", reason), zap.Int("count", count))
	}
	return providers, stats, nil
}

// openStore opens the configured consent backend
func openStore() (*consent.Store, io.Closer, error) {
	backend, closer, err := consent.Open(cfg.Storage, fs)
	if err != nil {
		return nil, nil, err
	}
	return consent.NewStore(backend, cfg.Storage.Origin, log), closer, nil
}

func runGate(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	eventsFile, _ := cmd.Flags().GetString("events")
	metricsOut, _ := cmd.Flags().GetString("metrics-out")
	hidden, _ := cmd.Flags().GetBool("hidden")
	prerender, _ := cmd.Flags().GetBool("prerender")

	ctx := cmd.Context()

	data, err := readSource(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	doc, err := dom.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	extra, _, err := loadProviderFile(ctx)
	if err != nil {
		return err
	}

	store, closer, err := openStore()
	if err != nil {
		return err
	}
	defer closer.Close()

	m := metrics.New()
	p, err := page.New(doc, cfg.Embed,
		page.WithStore(store),
		page.WithMetrics(m),
		page.WithLogger(log),
		page.WithDebounce(cfg.Observer.Debounce),
		page.WithProviders(extra),
		page.WithInitialState(lifecycle.State{Visible: !hidden, Prerendering: prerender}),
	)
	if err != nil {
		return err
	}
	defer p.Stop()

	gates := p.Start()
	fmt.Fprintf(os.Stderr, "Gated %d embeds (language: %s)\n", len(gates), p.Config().Language)

	if eventsFile != "" {
		if err := replay(ctx, p, eventsFile); err != nil {
			return err
		}
	}
	p.Flush()

	html, err := p.HTML()
	if err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	if output == "" {
		fmt.Print(html)
	} else {
		if err := writeFile(output, []byte(html)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	}

	printSummary(p.Summary())

	if metricsOut != "" {
		if err := m.WriteTextfile(metricsOut); err != nil {
			return err
		}
	}
	return nil
}

func replay(ctx context.Context, p *page.Page, path string) error {
	data, err := readSource(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := scenario.Load(bytes.NewReader(data))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Replaying %d steps", len(s.Steps))
	if s.Name != "" {
		fmt.Fprintf(os.Stderr, " (%s)", s.Name)
	}
	fmt.Fprintln(os.Stderr)

	results, err := scenario.Run(p, s)
	for _, r := range results {
		fmt.Fprintf(os.Stderr, "  %2d. %-8s %s\n", r.Index, r.Action, r.Detail)
	}
	return err
}

func printSummary(summary map[gate.State]int) {
	fmt.Fprintf(os.Stderr, "Gates: %d gated, %d pending, %d active\n",
		summary[gate.Gated], summary[gate.PendingLoad], summary[gate.Active])
}

func runClassify(cmd *cobra.Command, args []string) error {
	extra, _, err := loadProviderFile(cmd.Context())
	if err != nil {
		return err
	}
	c := provider.New(append(append([]models.Provider{}, cfg.Embed.Providers...), extra...), log)
	for _, u := range args {
		fmt.Printf("%s\t%s\n", c.Classify(u), u)
	}
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	extra, stats, err := loadProviderFile(cmd.Context())
	if err != nil {
		return err
	}
	c := provider.New(append(append([]models.Provider{}, cfg.Embed.Providers...), extra...), log)

	fmt.Println("Providers in match order:")
	fmt.Println()
	for _, p := range c.Providers() {
		fmt.Printf("  [%s] %s\n", p.ID, p.Name)
		for _, pattern := range p.Patterns {
			fmt.Printf("         %s\n", pattern)
		}
	}

	cs := c.Stats()
	if stats.Total > 0 || len(cs.SkipReasons) > 0 {
		fmt.Printf("\nProvider file: %d lines, %d providers, %d rules (skipped: %d)\n",
			stats.Total, stats.Providers, stats.Rules, stats.Unsupported)
		reasons := make([]string, 0, len(cs.SkipReasons))
		for reason := range cs.SkipReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %s: %d\n", reason, cs.SkipReasons[reason])
		}
	}
	return nil
}

func statusLanguage() string {
	if cfg.Embed.Language == "" {
		return i18n.DefaultLanguage
	}
	return cfg.Embed.Language
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore()
	if err != nil {
		return err
	}
	defer closer.Close()

	st := page.QueryStatus(store, i18n.MustLocalizer(), statusLanguage())
	fmt.Printf("available: %t\nconsent:   %t\n%s\n", st.Available, st.Consent, st.Message)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	store, closer, err := openStore()
	if err != nil {
		return err
	}
	defer closer.Close()

	res := page.Reset(store, i18n.MustLocalizer(), statusLanguage())
	fmt.Println(res.Message)
	if !res.Available {
		return fmt.Errorf("consent storage unavailable")
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := defaultConfigPath
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := fs.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := writeFile(configPath, []byte(defaultConfig)); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0644)
}

const defaultConfig = `# Embed Consent Configuration

[embed]
enable_local_storage = true
show_always_allow_option = true
# Empty = detect from <html lang> or the page text
language = ""
privacy_policy_url = ""
exclude_selectors = [".no-consent", "[data-no-consent]"]
# Optional provider list file (path or URL)
providers_file = ""

# Custom providers are checked in order, ahead of the built-in ones
# [[embed.providers]]
# id = "peertube"
# name = "PeerTube"
# patterns = ["||tube.example.org/videos/embed/"]
# logo = "https://tube.example.org/logo.svg"
# logo_width = 48
# logo_height = 48

# Consent persistence: file, sqlite, memory or none
[storage]
driver = "file"
path = "./.embed-consent/consent.json"
origin = ""

[observer]
debounce = "120ms"

# HTTP client settings
[http]
timeout = "30s"
retries = 3

[log]
level = "info"
development = false
`
