// Package server assembles the script runner: config, logger, metrics,
// tracing, the sandbox with its browser capability, the examples catalog and
// the gin router.
package server
