/*
Package log provides structured logging for VitalSync using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-scoped loggers, configurable levels, and helpers for common
patterns. All logs include timestamps and support filtering by severity.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      "info",
		JSONOutput: true,
	})

Component loggers attach standard fields:

	logger := log.WithComponent("drainer")
	logger.Info().Str("entry_id", id).Msg("Entry synced")

Scoped helpers exist for the fields the sync core logs most: owner ID,
entry ID, and metric kind. Console (human-readable) output is available
for development by setting JSONOutput to false.

The global Logger is safe for concurrent use. Fatal logs exit the
process and are reserved for unrecoverable startup failures.
*/
package log
