package automation

import (
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Config controls how scripts get a browser
type Config struct {
	ChromePath    string        // Empty lets chromedp find Chrome
	DebuggingPort int           // Fixed port of the shared browser
	Endpoint      string        // Attach the shared session to this browser instead of launching
	LaunchTimeout time.Duration // Bound on starting Chrome
}

// DefaultConfig returns the defaults used by the server
func DefaultConfig() Config {
	return Config{
		DebuggingPort: 9222,
		LaunchTimeout: 20 * time.Second,
	}
}

// allowedFlags are the switches a script may pass to launch. Anything else,
// including flags that make Chrome start helper processes or read local
// files, is dropped.
var allowedFlags = map[string]bool{
	"no-sandbox":                true,
	"disable-setuid-sandbox":    true,
	"disable-dev-shm-usage":     true,
	"disable-gpu":               true,
	"disable-extensions":        true,
	"hide-scrollbars":           true,
	"mute-audio":                true,
	"incognito":                 true,
	"lang":                      true,
	"window-size":               true,
	"force-device-scale-factor": true,
	"font-render-hinting":       true,
}

// forcedFlags are applied to every launch regardless of the script
var forcedFlags = []string{"no-sandbox", "disable-dev-shm-usage"}

// parseFlag splits a Chrome command line switch into name and value
func parseFlag(arg string) (string, interface{}, bool) {
	arg = strings.TrimSpace(arg)
	if !strings.HasPrefix(arg, "-") {
		return "", nil, false
	}
	arg = strings.TrimLeft(arg, "-")
	if arg == "" {
		return "", nil, false
	}

	name, value, hasValue := strings.Cut(arg, "=")
	if !hasValue {
		return name, true, true
	}
	return name, value, true
}

// allocatorOptions builds the exec allocator options for a launch with the
// given script-supplied args. It also returns the args it dropped.
func (c Config) allocatorOptions(args []string, extra ...chromedp.ExecAllocatorOption) ([]chromedp.ExecAllocatorOption, []string) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if c.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.ChromePath))
	}

	var dropped []string
	for _, arg := range args {
		name, value, ok := parseFlag(arg)
		if !ok || !allowedFlags[name] {
			dropped = append(dropped, arg)
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	for _, name := range forcedFlags {
		opts = append(opts, chromedp.Flag(name, true))
	}
	return append(opts, extra...), dropped
}
