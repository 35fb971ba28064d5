/*
Package monitoring provides Prometheus-based metrics collection for the
library view service: reconciliation merges, cold refreshes, lifecycle
actions, observer counts, and the HTTP/WebSocket surface.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
