// Package logging wires log/slog with the handlers and attribute helpers
// shared across voiceforge. It provides a console handler that renders
// key=value lines for interactive use, a JSON handler for machine
// consumption, component loggers, and helpers that lift queue item, stage,
// and correlation identifiers out of a context into structured fields.
package logging
