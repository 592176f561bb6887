// Package api serves read-only views of the release catalog and genre
// history. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/releases, /v1/releases/calendar and /v1/releases/search over the
//     canonical store.
//   - GET /v1/genres/popular and /v1/snapshots for genre popularity.
package api
