/*
Package server manages an HTTP/HTTPS listener's lifecycle: non-blocking
start, graceful shutdown, and OS signal handling.

# Overview

Manager wraps net/http.Server, unifying listen/serve/shutdown and error
propagation. It supports both plain HTTP and TLS, with built-in
SIGINT/SIGTERM handling for production shutdown.

# Core types

  - Manager: holds the http.Server, net.Listener, and an async error
    channel; exposes Start/StartTLS/Shutdown/WaitForShutdown
  - Config: listen address, read/write/idle timeouts, max header size,
    graceful shutdown timeout

# Capabilities

  - Non-blocking start: Start/StartTLS run the server in a background
    goroutine, never blocking the caller
  - Graceful shutdown: Shutdown drains in-flight requests within the
    configured timeout
  - Signal handling: WaitForShutdown blocks on SIGINT/SIGTERM and then
    triggers graceful shutdown
  - Error propagation: Errors() returns an async channel for callers to
    monitor
  - TLS: StartTLS takes a cert/key file pair
  - Status: IsRunning/Addr report current listener state
*/
package server
