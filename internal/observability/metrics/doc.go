// Package metrics holds the Prometheus collectors of the collector and small
// Record* helpers used by the pipeline, the retrieval client and the stores.
//
// Collectors are registered with the default registry through promauto and
// exposed by the worker's /metrics endpoint.
package metrics
