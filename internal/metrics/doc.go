// Package metrics collects statistics about served connections and exposes
// them, together with worker pool state, to Prometheus.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	start := time.Now()
//	res := handler.ServeConn(conn)
//	m.Record(res.Status, res.Bytes, time.Since(start), res.Err)
//
//	snap := m.Snapshot()
//	fmt.Printf("Total: %d, RPS: %.2f, P99: %v\n",
//	    snap.TotalRequests, snap.RPS, snap.P99Latency)
//
// # Configuration
//
// Use NewWithConfig to change how many latency samples are kept for the
// P99 estimate. Samples form a ring: once full, the oldest is overwritten.
//
//	m := metrics.NewWithConfig(metrics.Config{MaxLatencySamples: 5000})
//
// # Prometheus
//
// NewRegistry returns a dedicated registry with Go runtime, process, pool
// and response collectors. Every value is read at scrape time, so nothing
// has to be pushed from the hot path.
//
// # Thread Safety
//
// Counters are atomic; the latency ring is guarded by a RWMutex.
package metrics
