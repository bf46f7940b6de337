package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/trend"
)

// Storage backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// StorageConfig selects where the log lives.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"` // relative to home unless absolute
}

// TrendConfig holds the stall rule.
type TrendConfig struct {
	MinSamples int     `yaml:"min_samples"`
	StallSlope float64 `yaml:"stall_slope"`
}

// EntryConfig holds defaults offered when logging a day.
type EntryConfig struct {
	DefaultCalories int   `yaml:"default_calories"`
	DeviationMenu   []int `yaml:"deviation_menu,flow"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config holds kyber configuration.
type Config struct {
	Version string        `yaml:"version"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Trend   TrendConfig   `yaml:"trend,omitempty"`
	Entry   EntryConfig   `yaml:"entry,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version: "1",
		Storage: StorageConfig{
			Backend: BackendCSV,
		},
		Trend: TrendConfig{
			MinSamples: trend.DefaultMinSamples,
			StallSlope: trend.DefaultStallSlope,
		},
		Entry: EntryConfig{
			DefaultCalories: 2500,
			DeviationMenu:   slices.Clone(entry.DefaultDeviationMenu),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// TrendParams converts the trend section into estimator params.
func (c Config) TrendParams() trend.Params {
	return trend.Params{MinSamples: c.Trend.MinSamples, StallSlope: c.Trend.StallSlope}
}

// Validate checks every section for values the tracker cannot use.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendCSV, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendCSV, BackendSQLite, c.Storage.Backend)
	}
	if err := c.TrendParams().Validate(); err != nil {
		return fmt.Errorf("trend: %w", err)
	}
	if c.Entry.DefaultCalories <= 0 {
		return fmt.Errorf("entry.default_calories must be a positive integer")
	}
	if err := validateMenu(c.Entry.DeviationMenu); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

func validateMenu(menu []int) error {
	if len(menu) == 0 {
		return fmt.Errorf("entry.deviation_menu must not be empty")
	}
	for _, v := range menu {
		if v < 0 {
			return fmt.Errorf("entry.deviation_menu values must be non-negative, got %d", v)
		}
	}
	if !slices.Contains(menu, 0) {
		return fmt.Errorf("entry.deviation_menu must include 0")
	}
	return nil
}

// Store represents a loaded KYBER_HOME.
type Store struct {
	Home   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// Home returns the KYBER_HOME path, respecting the KYBER_HOME env var.
func Home() string {
	if h := os.Getenv("KYBER_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".kyber")
	}
	return filepath.Join(home, ".kyber")
}

// Init creates the KYBER_HOME directory and a default config.yaml.
func Init(home string, force bool) error {
	if _, err := os.Stat(home); err == nil && !force {
		return fmt.Errorf("KYBER_HOME already exists at %s (use --force to reinitialize)", home)
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", home, err)
	}
	return writeConfig(home, DefaultConfig())
}

// Load reads and validates an existing KYBER_HOME.
// Missing config fields are filled from defaults.
func Load(home string) (*Store, error) {
	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read KYBER_HOME config at %s: %w", cfgPath, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config.yaml: %w", err)
	}
	return &Store{Home: home, Config: cfg}, nil
}

func writeConfig(home string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveConfig writes the current config to config.yaml.
func (s *Store) SaveConfig() error {
	return writeConfig(s.Home, s.Config)
}

// ConfigKeys lists the keys accepted by SetConfigValue.
var ConfigKeys = []string{
	"storage.backend",
	"storage.path",
	"trend.min_samples",
	"trend.stall_slope",
	"entry.default_calories",
	"entry.deviation_menu",
	"log.level",
}

// SetConfigValue sets a config value by dot-path key (e.g. "trend.min_samples").
// The change is validated as a whole before it is persisted.
func (s *Store) SetConfigValue(key, value string) error {
	cfg := s.Config
	cfg.Entry.DeviationMenu = slices.Clone(cfg.Entry.DeviationMenu)

	switch key {
	case "storage.backend":
		cfg.Storage.Backend = strings.ToLower(value)
	case "storage.path":
		cfg.Storage.Path = value
	case "trend.min_samples":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("trend.min_samples must be an integer >= 2")
		}
		cfg.Trend.MinSamples = n
	case "trend.stall_slope":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("trend.stall_slope must be a positive number")
		}
		cfg.Trend.StallSlope = f
	case "entry.default_calories":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("entry.default_calories must be a positive integer")
		}
		cfg.Entry.DefaultCalories = n
	case "entry.deviation_menu":
		menu, err := ParseMenu(value)
		if err != nil {
			return err
		}
		cfg.Entry.DeviationMenu = menu
	case "log.level":
		cfg.Log.Level = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key: %s\nValid keys: %s", key, strings.Join(ConfigKeys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	s.Config = cfg
	return s.SaveConfig()
}

// ParseMenu parses a comma-separated list of deviation amounts.
func ParseMenu(value string) ([]int, error) {
	var menu []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(part, "+"))
		if err != nil {
			return nil, fmt.Errorf("entry.deviation_menu: %q is not an integer", part)
		}
		menu = append(menu, n)
	}
	slices.Sort(menu)
	return slices.Compact(menu), nil
}

// Path resolves a path within KYBER_HOME.
func (s *Store) Path(parts ...string) string {
	all := append([]string{s.Home}, parts...)
	return filepath.Join(all...)
}

// DataPath returns the location of the log for the configured backend.
func (s *Store) DataPath() string {
	p := s.Config.Storage.Path
	if p == "" {
		if s.Config.Storage.Backend == BackendSQLite {
			p = "log.db"
		} else {
			p = "log.csv"
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return s.Path(p)
}

// CheckHealth verifies KYBER_HOME structure integrity.
func CheckHealth(home string) []Issue {
	var issues []Issue

	info, err := os.Stat(home)
	if err != nil {
		return append(issues, Issue{"error", fmt.Sprintf("missing directory: %s", home)})
	}
	if !info.IsDir() {
		return append(issues, Issue{"error", fmt.Sprintf("expected directory but found file: %s", home)})
	}

	cfgPath := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("cannot read config.yaml: %v", err)})
		return issues
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml is not valid YAML: %v", err)})
	} else if err := cfg.Validate(); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("config.yaml: %v", err)})
	}

	return issues
}

// FixIssues attempts to repair simple issues in KYBER_HOME.
func FixIssues(home string) []string {
	var fixed []string

	if _, err := os.Stat(home); err != nil {
		if err := os.MkdirAll(home, 0755); err == nil {
			fixed = append(fixed, fmt.Sprintf("recreated missing directory: %s", home))
		}
	}

	cfgPath := filepath.Join(home, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		if writeConfig(home, DefaultConfig()) == nil {
			fixed = append(fixed, "recreated missing config.yaml with defaults")
		}
	}

	return fixed
}
