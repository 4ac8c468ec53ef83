/*
Package log provides structured logging for the coordinator and worker
binaries using zerolog.

# Configuration

Init sets the global Logger from a Config: Level selects the minimum
severity (debug/info/warn/error), JSONOutput switches between a
zerolog.ConsoleWriter (human-readable, for a terminal) and plain JSON
(for log aggregation), and Output defaults to os.Stdout.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

# Scoped loggers

WithComponent, WithNodeID, WithJobID and WithVerb return a child logger
with one field attached, used throughout pkg/coordinator and pkg/worker
to tag every line with the subsystem, worker identity, job id or verb it
concerns without threading a *zerolog.Logger through every call:

	logger := log.WithNodeID(identity)
	logger.Info().Str("verb", job.Verb).Msg("job accepted")

# Package-level helpers

Info/Debug/Warn/Error/Errorf/Fatal write through the global Logger for
call sites that don't need a scoped child logger (startup/shutdown
messages in cmd/directord).
*/
package log
