// ABOUTME: Configuration loading and resolution for kagi-mcp-server
// ABOUTME: Merges defaults, a YAML or TOML file, environment variables and CLI overrides

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/kagi-mcp/internal/kagi"
)

// Config is the resolved kagi-mcp-server configuration. It is built once at
// startup and treated as read-only afterwards.
type Config struct {
	Kagi      KagiConfig      `yaml:"kagi" toml:"kagi"`
	Tools     ToolsConfig     `yaml:"tools" toml:"tools"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Usage     UsageConfig     `yaml:"usage" toml:"usage"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Output    OutputConfig    `yaml:"output" toml:"output"`
}

// KagiConfig holds upstream API settings
type KagiConfig struct {
	APIKey           string            `yaml:"api_key" toml:"api_key"`
	BaseURL          string            `yaml:"base_url" toml:"base_url"`
	SummarizerEngine string            `yaml:"summarizer_engine" toml:"summarizer_engine"`
	APIVersions      APIVersionsConfig `yaml:"api_versions" toml:"api_versions"`
	RateLimit        float64           `yaml:"rate_limit" toml:"rate_limit"`
	Burst            int               `yaml:"burst" toml:"burst"`

	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for file unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// APIVersionsConfig selects the API version per endpoint family
type APIVersionsConfig struct {
	Search     string `yaml:"search" toml:"search"`
	Summarizer string `yaml:"summarizer" toml:"summarizer"`
	FastGPT    string `yaml:"fastgpt" toml:"fastgpt"`
	Enrich     string `yaml:"enrich" toml:"enrich"`
}

// ToolsConfig holds per-tool feature flags
type ToolsConfig struct {
	Search     ToolConfig    `yaml:"search" toml:"search"`
	Summarizer ToolConfig    `yaml:"summarizer" toml:"summarizer"`
	FastGPT    FastGPTConfig `yaml:"fastgpt" toml:"fastgpt"`
	EnrichWeb  ToolConfig    `yaml:"enrich_web" toml:"enrich_web"`
	EnrichNews ToolConfig    `yaml:"enrich_news" toml:"enrich_news"`
}

// ToolConfig toggles a single tool
type ToolConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// FastGPTConfig toggles the FastGPT tool and its upstream options
type FastGPTConfig struct {
	Enabled   bool `yaml:"enabled" toml:"enabled"`
	Cache     bool `yaml:"cache" toml:"cache"`
	WebSearch bool `yaml:"web_search" toml:"web_search"`
}

// CacheConfig holds the in-process response cache settings
type CacheConfig struct {
	Enabled    bool `yaml:"enabled" toml:"enabled"`
	MaxEntries int  `yaml:"max_entries" toml:"max_entries"`

	TTL time.Duration `yaml:"-" toml:"-"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// UsageConfig holds the usage ledger settings
type UsageConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Database string `yaml:"database" toml:"database"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TelemetryConfig holds OpenTelemetry settings. Exporter endpoints come from
// the standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// OutputConfig controls how tool text is rendered
type OutputConfig struct {
	Format string `yaml:"format" toml:"format"`
}

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatPlain    = "plain"
)

// EnvConfigPath names the variable consulted when no --config flag is given.
const EnvConfigPath = "KAGI_MCP_CONFIG"

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Kagi: KagiConfig{
			BaseURL:          kagi.DefaultBaseURL,
			SummarizerEngine: string(kagi.DefaultEngine),
			APIVersions: APIVersionsConfig{
				Search:     kagi.DefaultAPIVersion,
				Summarizer: kagi.DefaultAPIVersion,
				FastGPT:    kagi.DefaultAPIVersion,
				Enrich:     kagi.DefaultAPIVersion,
			},
			Burst:      1,
			Timeout:    kagi.DefaultTimeout,
			TimeoutRaw: kagi.DefaultTimeout.String(),
		},
		Tools: ToolsConfig{
			Search:     ToolConfig{Enabled: true},
			Summarizer: ToolConfig{Enabled: true},
			FastGPT:    FastGPTConfig{Enabled: true, Cache: true, WebSearch: true},
			EnrichWeb:  ToolConfig{Enabled: true},
			EnrichNews: ToolConfig{Enabled: true},
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 256,
			TTL:        10 * time.Minute,
			TTLRaw:     "10m",
		},
		Usage: UsageConfig{
			Database: defaultUsageDatabase(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "kagi-mcp-server",
		},
		Output: OutputConfig{
			Format: FormatMarkdown,
		},
	}
}

func defaultUsageDatabase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "kagi-mcp-usage.db"
	}
	return filepath.Join(home, ".local", "share", "kagi-mcp", "usage.db")
}

// Load builds a configuration from defaults, the optional file at path and
// the environment. An empty path falls back to $KAGI_MCP_CONFIG; when that is
// unset too, only defaults and the environment apply.
// Load does not validate; callers apply CLI overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Kagi.SummarizerEngine = strings.ToLower(strings.TrimSpace(cfg.Kagi.SummarizerEngine))
	cfg.Usage.Database = expandHome(cfg.Usage.Database)

	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv overlays well-known environment variables.
func (c *Config) applyEnv() error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"KAGI_API_KEY", &c.Kagi.APIKey},
		{"KAGI_BASE_URL", &c.Kagi.BaseURL},
		{"KAGI_SUMMARIZER_ENGINE", &c.Kagi.SummarizerEngine},
		{"KAGI_SEARCH_API_VERSION", &c.Kagi.APIVersions.Search},
		{"KAGI_SUMMARIZER_API_VERSION", &c.Kagi.APIVersions.Summarizer},
		{"KAGI_FASTGPT_API_VERSION", &c.Kagi.APIVersions.FastGPT},
		{"KAGI_ENRICH_API_VERSION", &c.Kagi.APIVersions.Enrich},
		{"KAGI_MCP_LOG_LEVEL", &c.Logging.Level},
		{"KAGI_MCP_USAGE_DB", &c.Usage.Database},
	}
	for _, s := range strs {
		if v := os.Getenv(s.name); v != "" {
			*s.dst = v
		}
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"KAGI_SEARCH_ENABLED", &c.Tools.Search.Enabled},
		{"KAGI_SUMMARIZER_ENABLED", &c.Tools.Summarizer.Enabled},
		{"KAGI_FASTGPT_ENABLED", &c.Tools.FastGPT.Enabled},
		{"KAGI_ENRICH_WEB_ENABLED", &c.Tools.EnrichWeb.Enabled},
		{"KAGI_ENRICH_NEWS_ENABLED", &c.Tools.EnrichNews.Enabled},
		{"KAGI_FASTGPT_CACHE", &c.Tools.FastGPT.Cache},
		{"KAGI_FASTGPT_WEB_SEARCH", &c.Tools.FastGPT.WebSearch},
		{"KAGI_MCP_CACHE_ENABLED", &c.Cache.Enabled},
		{"KAGI_MCP_USAGE_ENABLED", &c.Usage.Enabled},
		{"KAGI_MCP_OTEL_ENABLED", &c.Telemetry.Enabled},
	}
	for _, b := range bools {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", b.name, v)
		}
		*b.dst = parsed
	}

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Kagi.APIKey == "" {
		return fmt.Errorf("kagi.api_key is required (set KAGI_API_KEY or pass --api-key)")
	}

	if c.Kagi.Timeout <= 0 {
		return fmt.Errorf("kagi.timeout must be positive")
	}

	if c.Kagi.RateLimit < 0 {
		return fmt.Errorf("kagi.rate_limit must not be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
		}
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive when the cache is enabled")
		}
	}

	if c.Usage.Enabled && c.Usage.Database == "" {
		return fmt.Errorf("usage.database is required when usage is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is invalid (want debug, info, warn or error)", c.Logging.Level)
	}

	switch c.Output.Format {
	case FormatMarkdown, FormatPlain:
	default:
		return fmt.Errorf("output.format %q is invalid (want %s or %s)", c.Output.Format, FormatMarkdown, FormatPlain)
	}

	return nil
}

// ResolveEngine returns the configured summarizer engine. An unknown name
// falls back to the default engine and reports fellBack so the caller can warn.
func (c *Config) ResolveEngine() (engine kagi.Engine, fellBack bool) {
	if c.Kagi.SummarizerEngine == "" {
		return kagi.DefaultEngine, false
	}
	e, err := kagi.ParseEngine(c.Kagi.SummarizerEngine)
	if err != nil {
		return kagi.DefaultEngine, true
	}
	return e, false
}

// ClientOptions maps the upstream section onto kagi client options.
func (c *Config) ClientOptions() kagi.Options {
	return kagi.Options{
		APIKey:  c.Kagi.APIKey,
		BaseURL: c.Kagi.BaseURL,
		Versions: kagi.Versions{
			Search:     c.Kagi.APIVersions.Search,
			Summarizer: c.Kagi.APIVersions.Summarizer,
			FastGPT:    c.Kagi.APIVersions.FastGPT,
			Enrich:     c.Kagi.APIVersions.Enrich,
		},
		Timeout:   c.Kagi.Timeout,
		RateLimit: c.Kagi.RateLimit,
		Burst:     c.Kagi.Burst,
	}
}

// Redacted returns a copy safe to print, with the API key masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Kagi.APIKey != "" {
		out.Kagi.APIKey = "********"
	}
	return out
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Kagi.TimeoutRaw != "" {
		cfg.Kagi.Timeout, err = time.ParseDuration(cfg.Kagi.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing kagi.timeout %q: %w", cfg.Kagi.TimeoutRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
