package propulse

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/propulse/internal/process"
)

// launchConfig controls how headless Chrome is started.
type launchConfig struct {
	// bin is an explicit browser binary. Empty means ROD_BROWSER_BIN, then
	// rod's lookup (which downloads Chromium on first run if none is found).
	bin       string
	noSandbox bool
}

// browserInstance is one launched headless Chrome process.
type browserInstance struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// launchBrowser starts headless Chrome and connects to it.
func launchBrowser(cfg launchConfig) (*browserInstance, error) {
	l := launcher.New().Headless(true)

	bin := cfg.bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// Containers and CI runners lack the namespaces Chrome's sandbox needs
	if cfg.noSandbox || os.Getenv("CI") == "true" || bin != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		inst := &browserInstance{launcher: l}
		_ = inst.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrowserConnect, err)
	}

	return &browserInstance{browser: b, launcher: l}, nil
}

// Close shuts the browser down: graceful close, then process group kill,
// then removal of the temporary profile directory.
func (b *browserInstance) Close() error {
	if b == nil {
		return nil
	}

	var errs []error
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		b.browser = nil
	}
	if b.launcher != nil {
		process.KillProcessGroup(b.launcher.PID())
		b.launcher.Kill()
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return errors.Join(errs...)
}
