// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Script runs log through a child logger tagged with run_id, HTTP requests
// through one tagged with trace_id.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8080"))
//	logger.Error("Run failed", zap.Error(err))
package logging
