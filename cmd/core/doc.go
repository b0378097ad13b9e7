/*
Package main is the executable entrypoint for the plant-care assistant's
core service.

# Overview

core is the service's command-line entrypoint: it loads YAML/env
config, builds a structured zap logger, opens the configured database
driver (postgres, mysql, or sqlite), and serves liveness/readiness
endpoints plus Prometheus metrics. It also hosts the "migrate"
subcommand for applying schema migrations.

# Subcommands

  - serve    start the service
  - migrate  apply/rollback/inspect database migrations
  - version  print build version info
  - health   probe a running instance's /health endpoint

# Scope

This binary intentionally does not expose /identify, /health/assess or
/chat as HTTP routes: those are Go packages (identify, contextassembler,
chat) meant to be embedded directly by a caller, not a wire API this
repository defines.
*/
package main
