/*
Package database provides gorm-backed connection pool management,
including health checks, stats collection, and transaction retry.

# Overview

PoolManager wraps gorm's DB alongside the underlying database/sql pool
config, centralizing connection lifecycle, idle reclamation, and
max-connection limits. A background health check pings periodically
and logs diagnostics through zap on failure.

# Core types

  - PoolManager: the pool manager; holds the gorm.DB and the
    underlying sql.DB, exposing DB(), Ping(), Stats(), Close()
  - PoolConfig: pool tuning — max idle conns, max open conns, conn
    max lifetime, idle timeout, health check interval
  - PoolStats: a friendly snapshot of pool runtime stats
  - TransactionFunc: the transaction callback signature

# Capabilities

  - Pool tuning via MaxIdleConns/MaxOpenConns/ConnMaxLifetime
  - Background PingContext health checks reporting open/idle counts
  - WithTransaction for a single transaction; WithTransactionRetry adds
    exponential backoff retry for deadlocks and serialization failures
  - GetStats returns structured pool runtime metrics
*/
package database
