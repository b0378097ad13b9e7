/*
Package config loads the application's configuration.

# Overview

Config is assembled from three layers, each overriding the last:
built-in defaults, an optional YAML file, then environment variables
(GREENLEAF_ prefix by default).

# Core types

  - Config: the top-level aggregate — Server, Agent, Redis, Database,
    Qdrant, LLM, Log, Telemetry
  - Loader: builder-style loader; chain WithConfigPath, WithEnvPrefix,
    WithValidator before calling Load

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("GREENLEAF").
		Load()
*/
package config
