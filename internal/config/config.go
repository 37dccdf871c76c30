// Package config loads service configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/propulse/internal/fileutil"
	"github.com/alnah/propulse/internal/logging"
	"github.com/alnah/propulse/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrMissingAPIKey   = errors.New("llm.apiKey is required (OPENROUTER_API_KEY)")
	ErrMissingBaseURL  = errors.New("llm.baseURL is required (OPENROUTER_API_BASE)")
	ErrInvalidValue    = errors.New("invalid config value")
	ErrInvalidEnv      = errors.New("invalid environment variable")
)

// Field length limits.
const (
	MaxURLLength   = 2048
	MaxKeyLength   = 512
	MaxModelLength = 200
	MaxPathLength  = 4096
	MaxTitleLength = 100
)

// render.workers bounds. WorkersAuto sizes the browser pool from GOMAXPROCS;
// zero launches a fresh browser per render.
const (
	WorkersAuto = -1
	MaxWorkers  = 8
)

// Config holds all configuration for the service and CLI.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Render    RenderConfig    `yaml:"render"`
	Templates TemplatesConfig `yaml:"templates"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Extract   ExtractConfig   `yaml:"extract"`
	Inline    InlineConfig    `yaml:"inline"`
}

// LLMConfig defines the completion provider.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "openai" (OpenAI-compatible, default) or "anthropic"
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Referer     string        `yaml:"referer"` // HTTP-Referer attribution header
	Title       string        `yaml:"title"`   // X-Title attribution header
	Timeout     time.Duration `yaml:"timeout"` // 0 = no timeout
}

// RenderConfig defines PDF rendering.
type RenderConfig struct {
	OutputDir    string        `yaml:"outputDir"`
	SettleDelay  time.Duration `yaml:"settleDelay"`
	ReadyTimeout time.Duration `yaml:"readyTimeout"`
	Timeout      time.Duration `yaml:"timeout"`
	Workers      int           `yaml:"workers"` // 0 = fresh browser per render, -1 = auto pool
	BrowserBin   string        `yaml:"browserBin"`
	NoSandbox    bool          `yaml:"noSandbox"`
}

// TemplatesConfig locates the install root holding templates/base.html.
type TemplatesConfig struct {
	Root string `yaml:"root"` // Empty = degraded exemplar
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LogConfig defines the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// ExtractConfig defines how completion text becomes HTML.
type ExtractConfig struct {
	Mode string `yaml:"mode"` // repair, strict, passthrough
}

// InlineConfig defines inline-mode output.
type InlineConfig struct {
	Pretty bool `yaml:"pretty"` // indent returned HTML
}

// DefaultConfig returns the configuration defaults. Credentials are empty.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "minimax/minimax-m2:free",
			Temperature: 0.7,
			Referer:     "http://localhost:5000",
			Title:       "GeradorDePropostasIA",
		},
		Render: RenderConfig{
			OutputDir:    "temp_pdfs",
			SettleDelay:  2000 * time.Millisecond,
			ReadyTimeout: 5 * time.Second,
			Timeout:      60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":5000",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Output: "stdout",
		},
		Extract: ExtractConfig{Mode: "repair"},
	}
}

// Validate checks required values, enumerations and ranges.
// LoadConfig does not call it: environment and flags are applied first.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}

	switch c.LLM.Provider {
	case "", "openai":
		if strings.TrimSpace(c.LLM.BaseURL) == "" {
			return ErrMissingBaseURL
		}
	case "anthropic":
		// baseURL optional
	default:
		return fmt.Errorf("%w: llm.provider %q (must be openai or anthropic)", ErrInvalidValue, c.LLM.Provider)
	}

	if err := validateFieldLength("llm.apiKey", c.LLM.APIKey, MaxKeyLength); err != nil {
		return err
	}
	if err := validateFieldLength("llm.baseURL", c.LLM.BaseURL, MaxURLLength); err != nil {
		return err
	}
	if c.LLM.BaseURL != "" && !fileutil.IsURL(c.LLM.BaseURL) {
		return fmt.Errorf("%w: llm.baseURL must be an http(s) URL, got %q", ErrInvalidValue, c.LLM.BaseURL)
	}
	if err := validateFieldLength("llm.model", c.LLM.Model, MaxModelLength); err != nil {
		return err
	}
	if err := validateFieldLength("llm.referer", c.LLM.Referer, MaxURLLength); err != nil {
		return err
	}
	if err := validateFieldLength("llm.title", c.LLM.Title, MaxTitleLength); err != nil {
		return err
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be between 0 and 2, got %.2f", ErrInvalidValue, c.LLM.Temperature)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("%w: llm.timeout must not be negative", ErrInvalidValue)
	}

	if err := validateFieldLength("render.outputDir", c.Render.OutputDir, MaxPathLength); err != nil {
		return err
	}
	if err := validateFieldLength("render.browserBin", c.Render.BrowserBin, MaxPathLength); err != nil {
		return err
	}
	if c.Render.SettleDelay < 0 {
		return fmt.Errorf("%w: render.settleDelay must not be negative", ErrInvalidValue)
	}
	if c.Render.ReadyTimeout < 0 {
		return fmt.Errorf("%w: render.readyTimeout must not be negative", ErrInvalidValue)
	}
	if c.Render.Timeout <= 0 {
		return fmt.Errorf("%w: render.timeout must be positive", ErrInvalidValue)
	}
	if c.Render.Workers < WorkersAuto || c.Render.Workers > MaxWorkers {
		return fmt.Errorf("%w: render.workers must be between %d and %d, got %d", ErrInvalidValue, WorkersAuto, MaxWorkers, c.Render.Workers)
	}

	if err := validateFieldLength("templates.root", c.Templates.Root, MaxPathLength); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: server.shutdownTimeout must not be negative", ErrInvalidValue)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidValue, err)
	}

	switch c.Extract.Mode {
	case "", "repair", "strict", "passthrough":
	default:
		return fmt.Errorf("%w: extract.mode %q (must be repair, strict or passthrough)", ErrInvalidValue, c.Extract.Mode)
	}

	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name on top of
// DefaultConfig. Keys absent from the file keep their defaults.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()
	if err := yamlutil.ReadFile(configPath, cfg, true); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// SearchPaths lists the files LoadConfig tries for a bare config name,
// in order: ./{name}.yaml, ./{name}.yml, then the same under the user
// config directory (~/.config/propulse on Linux).
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "propulse", name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing file from SearchPaths.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
