// Package metrics defines the Prometheus collectors for the ingestion
// scheduler, the retrieval engine and the HTTP API.
package metrics
