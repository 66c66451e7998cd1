/*
Package sandbox executes untrusted automation scripts.

# Overview

A submitted script goes through four stages:

 1. Rewrite: a textual gate that refuses file:// access, pins the browser
    launch arguments (or redirects the launch to a shared browser) and
    injects a request filter on every new page.
 2. Harness: the rewritten code is placed inside a fixed template that
    captures console output, watches the working directory for a produced
    file and assembles the response.
 3. Execute: a fresh goja runtime on its own event loop, with ambient
    globals removed and only the configured capabilities installed as
    read-only bindings, runs under a hard deadline.
 4. Result: the harness value is decoded into a Result carrying the joined
    log and at most one artifact.

# Capabilities

Every run gets console, fs, mime, setTimeout and clearTimeout. The fs
binding only reads or deletes names shaped like png, jpg, jpeg or pdf files
inside the run's scratch directory; anything else fails exactly like a
missing file. Callers layer further bindings (the automation API) on top.

# Errors

Failures are *Error values carrying a Kind: SecurityRejected, Timeout,
Execution or Busy. A failure never outlives its run.

# Usage Example

	exec, _ := sandbox.NewExecutor(cfg, logger)
	svc := sandbox.NewService(exec, cfg, sandbox.Capabilities{
		"puppeteer": automation.Capability(sessions, browserCfg),
	}, metrics, logger)

	result, err := svc.Execute(ctx, script, sandbox.Options{})
	if sandbox.IsKind(err, sandbox.KindTimeout) {
		...
	}
*/
package sandbox
