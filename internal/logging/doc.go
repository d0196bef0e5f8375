// Package logging configures slog for smarthr.
//
// CLI commands log to stderr at the configured level. With --debug, and
// always under `smarthr serve`, JSON logs are written to
// ~/.smarthr/logs/smarthr.log with size-based rotation; serve never writes
// to stderr or stdout because stdout carries the MCP protocol.
package logging
