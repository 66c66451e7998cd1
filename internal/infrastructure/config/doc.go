// Package config provides 12-factor configuration management for the
// script runner backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, SSL redirect, gzip)
//   - Sandbox: execution timeout, artifact grace window, concurrency
//   - Browser: Chrome binary and shared-session reuse
//   - Examples: example script directory
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting for /run
//   - CORS: allowed origins
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
