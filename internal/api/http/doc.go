// Package http serves the optional diagnostics endpoints of each process.
//
// Routes:
//   - GET /health: 200 while the segment is attached and valid, 503 otherwise
//   - GET /state: JSON snapshot of every segment field
//   - GET /stats: counters as JSON
//   - GET /metrics: Prometheus exposition
package http
