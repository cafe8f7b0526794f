/*
Package log provides structured logging for Bollard built on zerolog.

Init configures the global logger once at process start (console output for
interactive deploys, JSON for cron/log shippers). Components obtain child
loggers with stable fields:

	logger := log.WithComponent("lifecycle")
	logger = log.WithOrdinal(logger, 2)
	logger.Info().Str("phase", "health-check").Msg("replica healthy")
*/
package log
