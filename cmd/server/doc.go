// Command try-automation runs untrusted browser automation scripts.
//
// Usage:
//
//	# HTTP server, configured from the environment
//	try-automation serve --port 8080
//
//	# share one Chrome between runs
//	try-automation serve --reuse
//
//	# run a script locally and keep its screenshot
//	try-automation run examples/screenshot.js --out shot.png
//
// Signals:
//   - SIGINT, SIGTERM: stop accepting runs, wait for runs in flight, release
//     the shared browser
package main
