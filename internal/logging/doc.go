// Package logging provides leveled logging for the ingest daemon.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the process
//
// The level comes from the DEBUG or LOG_LEVEL environment variables and can
// be replaced at runtime with SetLevel. Pipeline components log through a
// Logger obtained from Component so every line names its source, e.g.
// "[videoQueue]" or "[imageWatcher]".
package logging
