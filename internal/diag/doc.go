// Package diag defines the diagnostic model shared by the macro expansion
// subsystem and its callers.
//
// Diagnostic is the central record: severity, a compact numeric Code with a
// stable string form, a short message, the primary span and optional notes.
// Producers emit through a Reporter; BagReporter collects into a Bag, and
// CountingReporter lets the expansion engine detect errors raised while a
// macro implementation was running.
//
// Package diag does no formatting and no IO. Rendering lives in the CLI.
package diag
