// Package logging builds the slog loggers used across gnsstec.
//
// Two output formats are supported: a console handler that renders
// "timestamp LEVEL component: message key=value" lines, and a JSON handler
// for machine consumption. Helpers produce component-scoped loggers and a
// no-op logger for tests.
package logging
