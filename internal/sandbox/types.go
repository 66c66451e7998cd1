package sandbox

import (
	"time"

	"github.com/dop251/goja"
)

// Config defines sandbox configuration
type Config struct {
	Timeout       time.Duration // Hard bound on one run
	ArtifactGrace time.Duration // How long the assembler waits for a file
	WorkDir       string        // Parent of the per-run scratch directories
	MaxConcurrent int           // Simultaneous runs
	QueueTimeout  time.Duration // How long a run may wait for a slot
}

// DefaultConfig returns the production limits
func DefaultConfig() Config {
	return Config{
		Timeout:       40 * time.Second,
		ArtifactGrace: 150 * time.Millisecond,
		MaxConcurrent: 4,
		QueueTimeout:  5 * time.Second,
	}
}

// Options tune a single Execute call
type Options struct {
	// ReuseSession is the DevTools websocket endpoint of a shared browser.
	// Empty means every script launches its own browser.
	ReuseSession string
}

// Result is what a successful run resolves to
type Result struct {
	Log    string    `json:"log"`
	Result *Artifact `json:"result,omitempty"`
}

// Artifact is the single file a script produced
type Artifact struct {
	Type   string `json:"type"`
	Buffer []byte `json:"buffer"`
}

// Capability builds the value bound to one global name for one run. It is
// called on the event loop goroutine with the run's environment.
type Capability func(env *Env) (goja.Value, error)

// Capabilities maps allowed global names to their constructors
type Capabilities map[string]Capability

// Merge returns a new set with other's entries layered over c
func (c Capabilities) Merge(other Capabilities) Capabilities {
	out := make(Capabilities, len(c)+len(other))
	for name, cap := range c {
		out[name] = cap
	}
	for name, cap := range other {
		out[name] = cap
	}
	return out
}
