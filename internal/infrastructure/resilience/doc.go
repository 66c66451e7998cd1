/*
Package resilience provides a circuit breaker for guarding the shared
browser.

# Overview

Launching or attaching to Chrome can fail repeatedly when the binary is
missing or the remote endpoint is gone. The breaker stops hammering it: after
a run of failures it opens, refuses attempts for a cooldown, then lets a
single trial through.

# Usage

	breaker := resilience.New("browser", resilience.BrowserSettings())

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return launch(ctx)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		...
	}

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                              |
	                                          [failure]
	                                              v
	                                            Open

A context cancellation is not held against the guarded resource.
*/
package resilience
