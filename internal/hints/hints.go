// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"strings"

	"github.com/alnah/propulse/internal/fileutil"
)

// Getenv looks up an environment variable. The CLI passes a lookup over its
// environment snapshot so hints never read the process environment directly.
type Getenv func(name string) string

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
func IsInContainer(getenv Getenv) bool {
	return fileutil.FileExists("/.dockerenv") ||
		getenv("container") != "" ||
		getenv("KUBERNETES_SERVICE_HOST") != ""
}

// IsInCI reports whether a common CI environment variable is set.
func IsInCI(getenv Getenv) bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if getenv(name) != "" {
			return true
		}
	}
	return false
}

// ForBrowserConnect returns hints for browser launch and connection errors.
func ForBrowserConnect(getenv Getenv) string {
	var hints []string

	if (IsInCI(getenv) || IsInContainer(getenv)) && getenv("PROPULSE_NO_SANDBOX") == "" {
		hints = append(hints, "set PROPULSE_NO_SANDBOX=true for Docker/CI")
	}
	if getenv("PROPULSE_BROWSER_BIN") == "" && getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set PROPULSE_BROWSER_BIN to use an installed Chrome")
	}
	hints = append(hints, "run 'propulse doctor' to check the setup")

	return formatHints(hints)
}

// ForProvider returns a hint for completion API failures.
func ForProvider() string {
	return format("check llm.model and the provider status; run with --verbose for request details")
}

// ForMissingCredentials returns a hint for a missing API key or base URL.
func ForMissingCredentials() string {
	return format("export OPENROUTER_API_KEY and OPENROUTER_API_BASE, or set llm.apiKey and llm.baseURL")
}

// ForTimeout returns a hint about raising the render or completion timeout.
func ForTimeout() string {
	return format("slow models or large documents need a higher llm.timeout or render.timeout")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config and the user config directory found in searchedPaths.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, "propulse") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check render.outputDir exists or can be created and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
