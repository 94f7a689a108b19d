// Package api hosts the optional operator status server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for live run counters, rate and ETA.
//   - GET /v1/outcomes for the most recent kept outcomes.
package api
