package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names. The OpenRouter names are the deployment's
// established credentials; everything else is PROPULSE_*.
const (
	EnvAPIKey  = "OPENROUTER_API_KEY"
	EnvBaseURL = "OPENROUTER_API_BASE"
	EnvConfig  = "PROPULSE_CONFIG"

	envPrefix = "PROPULSE_"
)

type envSetter func(c *Config, v string) error

// envVars maps recognized variables to the field they override.
var envVars = map[string]envSetter{
	EnvAPIKey:  func(c *Config, v string) error { c.LLM.APIKey = v; return nil },
	EnvBaseURL: func(c *Config, v string) error { c.LLM.BaseURL = v; return nil },
	EnvConfig:  func(*Config, string) error { return nil }, // consumed by the CLI

	"PROPULSE_LLM_PROVIDER": func(c *Config, v string) error { c.LLM.Provider = strings.ToLower(v); return nil },
	"PROPULSE_LLM_MODEL":    func(c *Config, v string) error { c.LLM.Model = v; return nil },
	"PROPULSE_LLM_TEMPERATURE": func(c *Config, v string) error {
		return parseFloat(v, &c.LLM.Temperature)
	},
	"PROPULSE_LLM_REFERER": func(c *Config, v string) error { c.LLM.Referer = v; return nil },
	"PROPULSE_LLM_TITLE":   func(c *Config, v string) error { c.LLM.Title = v; return nil },
	"PROPULSE_LLM_TIMEOUT": func(c *Config, v string) error { return parseDuration(v, &c.LLM.Timeout) },

	"PROPULSE_OUTPUT_DIR":     func(c *Config, v string) error { c.Render.OutputDir = v; return nil },
	"PROPULSE_SETTLE_DELAY":   func(c *Config, v string) error { return parseDuration(v, &c.Render.SettleDelay) },
	"PROPULSE_READY_TIMEOUT":  func(c *Config, v string) error { return parseDuration(v, &c.Render.ReadyTimeout) },
	"PROPULSE_RENDER_TIMEOUT": func(c *Config, v string) error { return parseDuration(v, &c.Render.Timeout) },
	"PROPULSE_WORKERS":        func(c *Config, v string) error { return parseInt(v, &c.Render.Workers) },
	"PROPULSE_BROWSER_BIN":    func(c *Config, v string) error { c.Render.BrowserBin = v; return nil },
	"PROPULSE_NO_SANDBOX":     func(c *Config, v string) error { return parseBool(v, &c.Render.NoSandbox) },

	"PROPULSE_TEMPLATES_ROOT": func(c *Config, v string) error { c.Templates.Root = v; return nil },

	"PROPULSE_ADDR":             func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"PROPULSE_SHUTDOWN_TIMEOUT": func(c *Config, v string) error { return parseDuration(v, &c.Server.ShutdownTimeout) },

	"PROPULSE_LOG_LEVEL":  func(c *Config, v string) error { c.Log.Level = v; return nil },
	"PROPULSE_LOG_OUTPUT": func(c *Config, v string) error { c.Log.Output = v; return nil },

	"PROPULSE_EXTRACT_MODE":  func(c *Config, v string) error { c.Extract.Mode = strings.ToLower(v); return nil },
	"PROPULSE_INLINE_PRETTY": func(c *Config, v string) error { return parseBool(v, &c.Inline.Pretty) },
}

// ApplyEnv overlays environment values (KEY=VALUE pairs, as returned by
// os.Environ) onto c. Empty values are ignored. It returns one warning per
// unrecognized PROPULSE_* variable, to catch typos.
func ApplyEnv(c *Config, environ []string) ([]string, error) {
	var warnings []string
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		set, known := envVars[name]
		if !known {
			if strings.HasPrefix(name, envPrefix) {
				warnings = append(warnings, fmt.Sprintf("unknown environment variable %s (typo?)", name))
			}
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if err := set(c, value); err != nil {
			return warnings, fmt.Errorf("%w: %s: %v", ErrInvalidEnv, name, err)
		}
	}
	return warnings, nil
}

// LookupEnv returns the value of name in environ.
func LookupEnv(environ []string, name string) string {
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v
		}
	}
	return ""
}

func parseDuration(v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}
