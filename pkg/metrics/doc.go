/*
Package metrics provides Prometheus metrics collection and a liveness/health
endpoint for the coordinator and worker binaries.

# Metrics

All metrics are registered at init time against the default Prometheus
registry and exposed for scraping via Handler():

  - directord_workers_total{state} — known workers by liveness state
  - directord_jobs_total{verb,outcome} — terminal jobs by verb/outcome
  - directord_jobs_in_flight — jobs accepted but not yet terminal
  - directord_job_execution_duration_seconds{verb} — per-worker execution time
  - directord_job_roundtrip_duration_seconds{verb} — dispatch-to-terminal time
  - directord_cache_hits_total{result} — fingerprint cache lookups
  - directord_transfers_total{outcome} / directord_transfer_bytes_total —
    chunked COPY/ADD transfer activity on the backend channel
  - directord_barrier_wait_duration_seconds{kind} — JOB_WAIT/QUERY_WAIT stalls
  - directord_heartbeat_reconnects_total — worker heartbeat channel reconnects
  - directord_query_fanout_total — QUERY results re-broadcast as ARG jobs

Timer wraps a start time for ObserveDuration/ObserveDurationVec call sites
that can't use prometheus.NewTimer directly because the histogram isn't
known until the operation completes (e.g. by verb).

# Collector

Collector polls a docstore.Store every 15s to refresh gauges that aren't
naturally updated at the point of an event — worker liveness counts and
in-flight job count, both derived from the full worker/job tables rather
than incremented per-request.

# Health

HealthChecker tracks named component health (RegisterComponent/
UpdateComponent) and aggregates it into a single HealthStatus
("healthy" only if every component is; "unhealthy" if any is), served as
JSON by the HTTP handlers in health.go for a coordinator's or worker's
liveness/readiness probe.
*/
package metrics
