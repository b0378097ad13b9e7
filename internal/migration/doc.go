/*
Package migration manages database schema migrations for PostgreSQL,
MySQL, and SQLite via golang-migrate.

# Overview

SQL migration files for each dialect are embedded via embed.FS and
driven through the golang-migrate engine for versioned schema changes:
forward migration, rollback, step execution, jumping to a specific
version, and forcing a version number.

# Core interfaces and types

  - Migrator: the migration interface — Up/Down/DownAll/Steps/Goto/
    Force/Version/Status/Info/Close
  - DefaultMigrator: the default Migrator implementation, wrapping a
    golang-migrate instance and its database connection
  - Config: migration config — database type, connection URL,
    migrations table name, lock timeout
  - DatabaseType: the database type enum (postgres/mysql/sqlite)
  - MigrationStatus / MigrationInfo: migration state and summary
  - CLI: a terminal-facing wrapper around Migrator with formatted output

# Capabilities

  - Multi-database support: DatabaseType plus embedded SQL files pick
    the right dialect automatically
  - Factory functions: NewMigratorFromConfig / NewMigratorFromDatabaseConfig
    / NewMigratorFromURL build a migrator from different config sources
  - CLI integration: RunUp/RunDown/RunStatus/RunInfo for terminal use
  - Helpers: ParseDatabaseType parses a type string; BuildDatabaseURL
    assembles a dialect-specific connection URL
*/
package migration
