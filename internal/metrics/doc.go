// Package metrics records what a monitoring run observed.
//
// Pipeline stages emit events to a Collector, which applies them in a single
// goroutine to:
//   - Prometheus counters and histograms on a private registry
//   - a run Summary (probes per scheme, status codes, failure kinds,
//     decisions, alert deliveries, store errors)
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.Event{
//		Type:     metrics.EventProbeCompleted,
//		Scheme:   model.SchemeHTTPS,
//		Status:   model.Code(200),
//		Duration: 150 * time.Millisecond,
//	})
//
//	collector.Stop() // drains pending events
//	summary := collector.Summary()
//	_ = collector.WriteTextfile("/var/lib/node_exporter/subwatch.prom")
//
// The textfile output is meant for the node_exporter textfile collector,
// since a run is a short-lived process with nothing to scrape.
package metrics
