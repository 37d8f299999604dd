// Package trace records what the macro expander does, span by span.
//
// Every expansion attempt opens a ScopeMacro span whose end event carries
// the outcome in its extras; sweeps over delayed call sites open ScopePass
// spans and a driver session wraps everything in one ScopeRun span.
// Argument synthesis and similar steps inside an attempt are ScopeNode
// points.
//
// Tracing is configured from the [trace] table of macroexp.toml:
//
//	[trace]
//	level = "detail"   # off|error|phase|detail|debug
//	mode = "stream"    # stream|ring|both
//	output = "expand.ndjson"
//
// A ring keeps the last events in memory; the driver dumps it when a run
// ends with errors, which is what level "error" is for.
package trace
