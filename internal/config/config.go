package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "wazuh-chat"

type Config struct {
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
	Dedupe   DedupeConfig   `mapstructure:"dedupe" yaml:"dedupe"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Theme    ThemeConfig    `mapstructure:"theme" yaml:"theme"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

// BackendConfig points at the assistant API
type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key,omitempty"` // sent as a bearer token when set
}

// SessionsConfig configures local conversation history
type SessionsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"` // override database path
	// MaxMessages is the number of exchanges kept per session; each
	// exchange is a user and an assistant message.
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`
	// TimeoutMinutes removes sessions idle for longer; 0 keeps them forever.
	TimeoutMinutes int `mapstructure:"timeout_minutes" yaml:"timeout_minutes"`
	MaxAgeDays     int `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxCount       int `mapstructure:"max_count" yaml:"max_count"`
}

// DedupeConfig tunes the reply deduplication heuristics
type DedupeConfig struct {
	Enabled          bool     `mapstructure:"enabled" yaml:"enabled"`
	MinLength        int      `mapstructure:"min_length" yaml:"min_length"`
	MinSummaryFields int      `mapstructure:"min_summary_fields" yaml:"min_summary_fields"`
	MinLeadInBold    int      `mapstructure:"min_lead_in_bold" yaml:"min_lead_in_bold"`
	LeadInPhrases    []string `mapstructure:"lead_in_phrases" yaml:"lead_in_phrases"`
	DisabledRules    []string `mapstructure:"disabled_rules" yaml:"disabled_rules,omitempty"`
}

// RenderConfig controls terminal rendering of replies
type RenderConfig struct {
	Width                 int    `mapstructure:"width" yaml:"width"` // 0 = detect terminal width
	DropUnterminatedFence bool   `mapstructure:"drop_unterminated_fence" yaml:"drop_unterminated_fence"`
	CodeStyle             string `mapstructure:"code_style" yaml:"code_style"`
	Renderer              string `mapstructure:"renderer" yaml:"renderer"`
}

// ThemeConfig allows customization of UI colors
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
// and override the named preset.
type ThemeConfig struct {
	Preset    string `mapstructure:"preset" yaml:"preset,omitempty"`
	Primary   string `mapstructure:"primary" yaml:"primary,omitempty"`
	Secondary string `mapstructure:"secondary" yaml:"secondary,omitempty"`
	Success   string `mapstructure:"success" yaml:"success,omitempty"`
	Error     string `mapstructure:"error" yaml:"error,omitempty"`
	Warning   string `mapstructure:"warning" yaml:"warning,omitempty"`
	Muted     string `mapstructure:"muted" yaml:"muted,omitempty"`
	Text      string `mapstructure:"text" yaml:"text,omitempty"`
	Spinner   string `mapstructure:"spinner" yaml:"spinner,omitempty"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error, off
	File  string `mapstructure:"file" yaml:"file,omitempty"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// TelegramConfig configures the Telegram relay
type TelegramConfig struct {
	Token        string        `mapstructure:"token" yaml:"token,omitempty"`
	AllowedUsers []string      `mapstructure:"allowed_users" yaml:"allowed_users,omitempty"` // ids or @usernames; empty allows everyone
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// Renderer names accepted in render.renderer
const (
	RendererNative  = "native"
	RendererGlamour = "glamour"
)

var validLogLevels = []string{"debug", "info", "warn", "error", "off"}

// SetDefaults registers every key with its default value.
// Keys must be known to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.api_key", "")

	v.SetDefault("sessions.enabled", true)
	v.SetDefault("sessions.path", "")
	v.SetDefault("sessions.max_messages", 50)
	v.SetDefault("sessions.timeout_minutes", 0)
	v.SetDefault("sessions.max_age_days", 0)
	v.SetDefault("sessions.max_count", 0)

	v.SetDefault("dedupe.enabled", true)
	v.SetDefault("dedupe.min_length", 50)
	v.SetDefault("dedupe.min_summary_fields", 2)
	v.SetDefault("dedupe.min_lead_in_bold", 2)
	v.SetDefault("dedupe.lead_in_phrases", []string{"here is", "here's", "below is", "the following"})
	v.SetDefault("dedupe.disabled_rules", []string{})

	v.SetDefault("render.width", 0)
	v.SetDefault("render.drop_unterminated_fence", false)
	v.SetDefault("render.code_style", "monokai")
	v.SetDefault("render.renderer", RendererNative)

	for _, k := range []string{"preset", "primary", "secondary", "success", "error", "warning", "muted", "text", "spinner"} {
		v.SetDefault("theme."+k, "")
	}

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("log.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.allowed_users", []string{})
	v.SetDefault("telegram.idle_timeout", 60*time.Minute)
}

// Load reads the config file (optional) and WAZUH_CHAT_* environment
// overrides into the global viper instance. An empty configFile searches
// the default config directory.
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.GetViper(), configFile)
}

// LoadWith is Load against a specific viper instance.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		configPath, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configPath)
	}

	v.SetEnvPrefix("WAZUH_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configFile == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Backend.APIKey = expandEnv(cfg.Backend.APIKey)
	cfg.Telegram.Token = expandEnv(cfg.Telegram.Token)
	cfg.Sessions.Path = expandHome(cfg.Sessions.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout must not be negative"))
	}
	if c.Sessions.MaxMessages < 0 {
		errs = append(errs, errors.New("sessions.max_messages must not be negative"))
	}
	if c.Sessions.TimeoutMinutes < 0 {
		errs = append(errs, errors.New("sessions.timeout_minutes must not be negative"))
	}
	if c.Dedupe.MinLength < 0 || c.Dedupe.MinSummaryFields < 0 || c.Dedupe.MinLeadInBold < 0 {
		errs = append(errs, errors.New("dedupe thresholds must not be negative"))
	}
	if c.Render.Width < 0 {
		errs = append(errs, errors.New("render.width must not be negative"))
	}
	if r := c.Render.Renderer; r != "" && r != RendererNative && r != RendererGlamour {
		errs = append(errs, fmt.Errorf("render.renderer %q must be %q or %q", r, RendererNative, RendererGlamour))
	}
	if lvl := strings.ToLower(c.Log.Level); lvl != "" && !slices.Contains(validLogLevels, lvl) {
		errs = append(errs, fmt.Errorf("log.level %q must be one of %s", c.Log.Level, strings.Join(validLogLevels, ", ")))
	}

	return errors.Join(errs...)
}

// YAML renders the effective configuration. Secrets are masked.
func (c *Config) YAML() ([]byte, error) {
	masked := *c
	if masked.Backend.APIKey != "" {
		masked.Backend.APIKey = "********"
	}
	if masked.Telegram.Token != "" {
		masked.Telegram.Token = "********"
	}
	return yaml.Marshal(&masked)
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// GetConfigDir returns the XDG config directory for wazuh-chat.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetDataDir returns the XDG data directory for wazuh-chat.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", appName), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	header := "# wazuh-chat configuration\n# Environment variables WAZUH_CHAT_<SECTION>_<KEY> override these values.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}

// Set updates a single dotted key in the config file at path, keeping
// the other keys as they are.
func Set(path, key, value string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	d := viper.New()
	SetDefaults(d)
	key = strings.ToLower(key)
	if !slices.Contains(d.AllKeys(), key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	switch d.Get(key).(type) {
	case []string:
		v.Set(key, splitList(value))
	default:
		v.Set(key, value)
	}

	// Validate the result before touching the file.
	probe := viper.New()
	SetDefaults(probe)
	if err := probe.MergeConfigMap(v.AllSettings()); err != nil {
		return err
	}
	var cfg Config
	if err := probe.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return v.WriteConfigAs(path)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
