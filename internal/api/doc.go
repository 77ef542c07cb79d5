// Package api hosts the optional admin HTTP server. Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state for the persisted cursor, retries and failures.
//   - GET /v1/runs/{run_id} and /v1/runs/{run_id}/outcomes for the run audit
//     when an AuditRepository is configured.
package api
