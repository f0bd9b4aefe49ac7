// Package api hosts the HTTP server that feeds records into the pipeline
// queue and serves indexed terms. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/records to enqueue one record or a JSON array of records.
//   - GET /v1/terms/{id} for the index document of a term.
//   - GET /v1/search?q= when the index store supports queries.
package api
