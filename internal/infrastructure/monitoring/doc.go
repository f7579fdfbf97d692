/*
Package monitoring provides metrics collection for the three processes.

# Overview

Each process builds one Metrics value with its own Prometheus registry,
tracking temperature samples, relayed distortions, relay calls on both
sides, validation rejections and compensation writes.

# Usage

	metrics := monitoring.NewMetrics("rtdcs_controller")

	// Count relay calls on the server side
	srv := rpc.NewServer(cfg, handler, logger, monitoring.UnaryServerInterceptor(metrics))

	// Time client calls
	timer := monitoring.NewTimer(metrics, monitoring.SideClient)
	err := client.Send(ctx, v)
	timer.Stop(code)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))
*/
package monitoring
