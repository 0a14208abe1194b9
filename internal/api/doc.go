// Package api serves the admin surface of the file server: health, pool
// status, per-worker state, Prometheus metrics, and a websocket feed.
//
// Routes:
//
//	GET /healthz      200 {"status":"ok"} while the pool runs with live workers, 503 otherwise
//	GET /api/status   pool stats, request snapshot, uptime
//	GET /api/workers  one entry per worker in construction order
//	GET /metrics      Prometheus exposition of the configured gatherer
//	    /ws           {"type":"event"} frames for pool events, {"type":"status"} every BroadcastInterval
package api
