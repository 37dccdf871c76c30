package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alnah/propulse"
	"github.com/alnah/propulse/internal/config"
	"github.com/alnah/propulse/internal/fileutil"
	flag "github.com/spf13/pflag"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo  `json:"chrome"`
	Env      envInfo     `json:"environment"`
	Service  serviceInfo `json:"service"`
	Config   *configInfo `json:"config,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// serviceInfo holds the checks specific to proposal generation.
type serviceInfo struct {
	OutputDir         string `json:"output_dir"`
	OutputDirWritable bool   `json:"output_dir_writable"`
	TemplatesRoot     string `json:"templates_root,omitempty"`
	Exemplar          string `json:"exemplar"` // "loaded", "degraded", "error"
}

// configInfo summarizes the effective configuration, without secrets.
type configInfo struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	BaseURL     string `json:"base_url,omitempty"`
	APIKeySet   bool   `json:"api_key_set"`
	Workers     int    `json:"workers"`
	ExtractMode string `json:"extract_mode"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad flags.
func runDoctorCmd(args []string, env *Environment) int {
	flags, err := parseDoctorFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(env.Stderr, "error:", err)
		return ExitUsage
	}

	result := runDoctor(flags, env)

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(flags *doctorFlags, env *Environment) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
	}

	cfg := checkConfig(result, flags, env)
	checkChrome(result, cfg, env)
	checkEnvironment(result, cfg, env)
	checkOutputDir(result, cfg)
	checkExemplar(result, cfg)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkConfig loads and validates configuration. On failure the defaults
// are returned so the remaining checks still run.
func checkConfig(result *doctorResult, flags *doctorFlags, env *Environment) *config.Config {
	f := flags.common
	f.quiet = true
	cfg, err := loadConfig(f, env)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
		return config.DefaultConfig()
	}

	result.Config = &configInfo{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKeySet:   strings.TrimSpace(cfg.LLM.APIKey) != "",
		Workers:     cfg.Render.Workers,
		ExtractMode: cfg.Extract.Mode,
	}
	if err := cfg.Validate(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
	}
	return cfg
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult, cfg *config.Config, env *Environment) {
	chromePath := cfg.Render.BrowserBin
	if chromePath == "" {
		chromePath = env.getenv("ROD_BROWSER_BIN")
	}

	if chromePath == "" {
		var found bool
		chromePath, found = env.LookBrowser()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found. Install Chrome or set render.browserBin / ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	cmd := exec.Command(chromePath, "--version") // #nosec G204 -- configured browser binary
	out, err := cmd.Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = !cfg.Render.NoSandbox && env.getenv("CI") != "true"
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, cfg *config.Config, env *Environment) {
	result.Env.Container, result.Env.ContainerHint = isContainer(env)

	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if env.getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if result.Env.Container && result.Chrome.Sandbox {
		result.Warnings = append(result.Warnings,
			"Container detected but sandbox enabled. Set render.noSandbox or PROPULSE_NO_SANDBOX=true")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(env *Environment) (bool, string) {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := env.getenv("container"); v != "" {
		return true, "container=" + v
	}
	if env.getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkOutputDir verifies the temporary PDF directory can be created and written.
func checkOutputDir(result *doctorResult, cfg *config.Config) {
	dir := cfg.Render.OutputDir
	result.Service.OutputDir = dir

	if err := fileutil.EnsureDir(dir); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Output directory: %v", err))
		return
	}
	probe, err := fileutil.UniquePath(dir, "probe")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Output directory: %v", err))
		return
	}
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Output directory not writable: %s", dir))
		return
	}
	_, _ = fileutil.RemoveIfExists(probe)
	result.Service.OutputDirWritable = true
}

// checkExemplar reports whether templates/base.html is available.
func checkExemplar(result *doctorResult, cfg *config.Config) {
	result.Service.TemplatesRoot = cfg.Templates.Root

	ex, err := propulse.LoadStyleExemplar(cfg.Templates.Root)
	switch {
	case err != nil:
		result.Service.Exemplar = "error"
		result.Errors = append(result.Errors, fmt.Sprintf("Style exemplar: %v", err))
	case ex.Degraded():
		result.Service.Exemplar = "degraded"
		where := "templates.root is not set"
		if cfg.Templates.Root != "" {
			where = filepath.Join(cfg.Templates.Root, "templates", "base.html") + " not found"
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Style exemplar degraded (%s); proposals will be designed from scratch", where))
	default:
		result.Service.Exemplar = "loaded"
	}
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "propulse doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled")
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Service")
	if r.Service.OutputDirWritable {
		fmt.Fprintf(w, "  [OK] Output directory: %s\n", r.Service.OutputDir)
	} else {
		fmt.Fprintf(w, "  [ERROR] Output directory: %s\n", r.Service.OutputDir)
	}
	switch r.Service.Exemplar {
	case "loaded":
		fmt.Fprintln(w, "  [OK] Style exemplar: loaded")
	case "degraded":
		fmt.Fprintln(w, "  [WARN] Style exemplar: degraded")
	default:
		fmt.Fprintln(w, "  [ERROR] Style exemplar: unreadable")
	}
	if r.Config != nil {
		fmt.Fprintf(w, "  [OK] Provider: %s (%s)\n", r.Config.Provider, r.Config.Model)
		if !r.Config.APIKeySet {
			fmt.Fprintln(w, "  [ERROR] API key: not set")
		}
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to generate")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
