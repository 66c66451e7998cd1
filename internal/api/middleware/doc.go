// Package middleware holds the HTTP middleware of the script runner.
//
//   - CORS: allow-listed origins only
//   - RateLimit: per-IP token bucket, applied to /run
//   - ForceSSL: redirect proxied plain HTTP to https
//   - Gzip: response compression, wraps the whole handler
//
// Example Usage:
//
//	router.Use(middleware.ForceSSL())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.POST("/run", middleware.RateLimit(middleware.DefaultRateLimitConfig()), handlers.Run)
package middleware
