/*
Package metrics provides Prometheus instrumentation across HTTP, LLM,
agent, cache, and database concerns.

# Overview

Collector registers and records Prometheus metrics via promauto, so no
Registry bookkeeping is needed by hand. Metrics are namespaced and
carry label dimensions suited to Grafana-style dashboards and alerts.

# Core types

  - Collector: holds the Counter/Histogram/Gauge vectors, grouped by
    concern.

# Capabilities

  - HTTP metrics: request count, duration, request/response size,
    grouped by method/path/status (status bucketed to 2xx/3xx/4xx/5xx)
  - LLM metrics: request count, duration, prompt/completion token
    usage, cost, grouped by provider/model
  - Agent metrics: execution count, duration, state transition counts,
    grouped by agent_id/agent_type
  - Cache metrics: hit/miss counts grouped by cache_type
  - Database metrics: active/idle connection gauges, query duration
    histogram, grouped by database/operation
*/
package metrics
