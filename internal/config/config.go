package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents templatecheck configuration options
type Config struct {
	// FixturesDir is where templates are generated and validated
	FixturesDir string `yaml:"fixtures_dir"`

	// TemplatesFile lists the templates to validate
	TemplatesFile string `yaml:"templates_file"`

	// ScaffoldCommand is the scaffolding CLI argv; template arguments are appended
	ScaffoldCommand []string `yaml:"scaffold_command"`

	// InstallCommand installs dependencies inside a generated template
	InstallCommand []string `yaml:"install_command"`

	// DevCommand starts the dev server; "--port <n>" is appended
	DevCommand []string `yaml:"dev_command"`

	// BuildCommand produces the production build
	BuildCommand []string `yaml:"build_command"`

	// BasePort is the dev-server port of the first template
	BasePort int `yaml:"base_port"`

	// IdleTimeout is how long the dev server may stay silent before startup fails
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ProbeHost is the host used for the readiness HTTP probe
	ProbeHost string `yaml:"probe_host"`

	// ProbeTimeout bounds the readiness HTTP probe
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ReadinessMarkers are substrings of dev-server stdout that signal readiness
	ReadinessMarkers []string `yaml:"readiness_markers"`

	// RequiredPaths must exist in every generated template
	RequiredPaths []string `yaml:"required_paths"`

	// ForbiddenPaths must have been cleaned up by the scaffolding CLI
	ForbiddenPaths []string `yaml:"forbidden_paths"`

	// BuildOutputDir is the build output directory, relative to the template
	BuildOutputDir string `yaml:"build_output_dir"`

	// BuildArtifacts must be present in the build output
	BuildArtifacts []string `yaml:"build_artifacts"`

	// MaxConcurrency is the maximum number of templates validated at once (0 = unlimited)
	MaxConcurrency int `yaml:"max_concurrency"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// HistoryDB is the path to the run history database (empty disables history)
	HistoryDB string `yaml:"history_db"`

	// ReportDir is where run reports are written (empty disables reports)
	ReportDir string `yaml:"report_dir"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		FixturesDir:      filepath.Join("test", "fixtures"),
		TemplatesFile:    "templates.yaml",
		ScaffoldCommand:  []string{"node", "../../create-astro.mjs"},
		InstallCommand:   []string{"npm", "install", "--no-package-lock", "--silent"},
		DevCommand:       []string{"npm", "run", "start", "--"},
		BuildCommand:     []string{"npm", "run", "build"},
		BasePort:         3000,
		IdleTimeout:      10 * time.Second,
		ProbeHost:        "localhost",
		ProbeTimeout:     30 * time.Second,
		ReadinessMarkers: []string{"Server started"},
		RequiredPaths:    []string{".gitignore", "package.json", "public", "src"},
		ForbiddenPaths:   []string{".git", "meta.json"},
		BuildOutputDir:   "dist",
		BuildArtifacts:   []string{"index.html", "_astro"},
		MaxConcurrency:   0, // Unlimited
		LogLevel:         "info",
		LogDir:           filepath.Join(".templatecheck", "logs"),
		HistoryDB:        filepath.Join(".templatecheck", "history.db"),
		ReportDir:        filepath.Join(".templatecheck", "reports"),
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are decoded as strings so "10s" style values parse
	type yamlConfig struct {
		FixturesDir      string   `yaml:"fixtures_dir"`
		TemplatesFile    string   `yaml:"templates_file"`
		ScaffoldCommand  []string `yaml:"scaffold_command"`
		InstallCommand   []string `yaml:"install_command"`
		DevCommand       []string `yaml:"dev_command"`
		BuildCommand     []string `yaml:"build_command"`
		BasePort         int      `yaml:"base_port"`
		IdleTimeout      string   `yaml:"idle_timeout"`
		ProbeHost        string   `yaml:"probe_host"`
		ProbeTimeout     string   `yaml:"probe_timeout"`
		ReadinessMarkers []string `yaml:"readiness_markers"`
		RequiredPaths    []string `yaml:"required_paths"`
		ForbiddenPaths   []string `yaml:"forbidden_paths"`
		BuildOutputDir   string   `yaml:"build_output_dir"`
		BuildArtifacts   []string `yaml:"build_artifacts"`
		MaxConcurrency   int      `yaml:"max_concurrency"`
		LogLevel         string   `yaml:"log_level"`
		LogDir           string   `yaml:"log_dir"`
		HistoryDB        *string  `yaml:"history_db"`
		ReportDir        *string  `yaml:"report_dir"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.FixturesDir != "" {
		cfg.FixturesDir = yamlCfg.FixturesDir
	}
	if yamlCfg.TemplatesFile != "" {
		cfg.TemplatesFile = yamlCfg.TemplatesFile
	}
	if len(yamlCfg.ScaffoldCommand) > 0 {
		cfg.ScaffoldCommand = yamlCfg.ScaffoldCommand
	}
	if len(yamlCfg.InstallCommand) > 0 {
		cfg.InstallCommand = yamlCfg.InstallCommand
	}
	if len(yamlCfg.DevCommand) > 0 {
		cfg.DevCommand = yamlCfg.DevCommand
	}
	if len(yamlCfg.BuildCommand) > 0 {
		cfg.BuildCommand = yamlCfg.BuildCommand
	}
	if yamlCfg.BasePort != 0 {
		cfg.BasePort = yamlCfg.BasePort
	}
	if yamlCfg.IdleTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.IdleTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid idle_timeout format %q: %w", yamlCfg.IdleTimeout, err)
		}
		cfg.IdleTimeout = d
	}
	if yamlCfg.ProbeHost != "" {
		cfg.ProbeHost = yamlCfg.ProbeHost
	}
	if yamlCfg.ProbeTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.ProbeTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid probe_timeout format %q: %w", yamlCfg.ProbeTimeout, err)
		}
		cfg.ProbeTimeout = d
	}
	if len(yamlCfg.ReadinessMarkers) > 0 {
		cfg.ReadinessMarkers = yamlCfg.ReadinessMarkers
	}
	if yamlCfg.RequiredPaths != nil {
		cfg.RequiredPaths = yamlCfg.RequiredPaths
	}
	if yamlCfg.ForbiddenPaths != nil {
		cfg.ForbiddenPaths = yamlCfg.ForbiddenPaths
	}
	if yamlCfg.BuildOutputDir != "" {
		cfg.BuildOutputDir = yamlCfg.BuildOutputDir
	}
	if yamlCfg.BuildArtifacts != nil {
		cfg.BuildArtifacts = yamlCfg.BuildArtifacts
	}
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	// An explicit empty string disables history or reports
	if yamlCfg.HistoryDB != nil {
		cfg.HistoryDB = *yamlCfg.HistoryDB
	}
	if yamlCfg.ReportDir != nil {
		cfg.ReportDir = *yamlCfg.ReportDir
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .templatecheck/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".templatecheck", "config.yaml"))
}

// Overrides carries CLI flag values. Nil fields leave the configuration untouched.
type Overrides struct {
	TemplatesFile  *string
	MaxConcurrency *int
	IdleTimeout    *time.Duration
	BasePort       *int
	LogDir         *string
	LogLevel       *string
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(o Overrides) {
	if o.TemplatesFile != nil {
		c.TemplatesFile = *o.TemplatesFile
	}
	if o.MaxConcurrency != nil {
		c.MaxConcurrency = *o.MaxConcurrency
	}
	if o.IdleTimeout != nil {
		c.IdleTimeout = *o.IdleTimeout
	}
	if o.BasePort != nil {
		c.BasePort = *o.BasePort
	}
	if o.LogDir != nil {
		c.LogDir = *o.LogDir
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.FixturesDir == "" {
		return fmt.Errorf("fixtures_dir cannot be empty")
	}
	if c.TemplatesFile == "" {
		return fmt.Errorf("templates_file cannot be empty")
	}

	commands := map[string][]string{
		"scaffold_command": c.ScaffoldCommand,
		"install_command":  c.InstallCommand,
		"dev_command":      c.DevCommand,
		"build_command":    c.BuildCommand,
	}
	for _, key := range []string{"scaffold_command", "install_command", "dev_command", "build_command"} {
		if len(commands[key]) == 0 || commands[key][0] == "" {
			return fmt.Errorf("%s must name an executable", key)
		}
	}

	if c.BasePort <= 0 || c.BasePort > 65535 {
		return fmt.Errorf("base_port must be in 1..65535, got %d", c.BasePort)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be > 0, got %v", c.IdleTimeout)
	}
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("probe_timeout must be >= 0, got %v", c.ProbeTimeout)
	}
	if c.ProbeHost == "" {
		return fmt.Errorf("probe_host cannot be empty")
	}
	if len(c.ReadinessMarkers) == 0 {
		return fmt.Errorf("readiness_markers must list at least one marker")
	}
	for _, m := range c.ReadinessMarkers {
		if m == "" {
			return fmt.Errorf("readiness_markers cannot contain an empty marker")
		}
	}
	if c.BuildOutputDir == "" {
		return fmt.Errorf("build_output_dir cannot be empty")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	return nil
}

// MaxPort returns the port assigned to the last of n templates.
func (c *Config) MaxPort(n int) int {
	if n <= 0 {
		return c.BasePort
	}
	return c.BasePort + n - 1
}
