/*
Package monitoring provides Prometheus metrics for the script runner.

Metrics live on a dedicated registry so tests can create as many collectors
as they like. Besides HTTP request metrics it records script runs
(runs_total, run_duration_seconds, runs_in_flight) and returned artifacts
(artifacts_total, artifact_bytes). *Metrics satisfies sandbox.Observer.

# Usage

	metrics := monitoring.NewMetrics()
	metrics.TrackInFlight(func() float64 { ... })

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	service := sandbox.NewService(executor, cfg, caps, metrics, logger)
*/
package monitoring
