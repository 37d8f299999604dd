// Package macros expands macro applications during type checking.
//
// A macro definition carries a persisted Binding that names its
// implementation and describes the implementation's parameter shape as a
// list of Fingerprint lists. At a call site the Engine decodes the binding,
// rebuilds the implementation's arguments from the call site (value
// arguments as syntax handles, type arguments as witnesses), invokes the
// implementation through an Invoker and folds the resulting tree back into
// the program. Call sites that still depend on undetermined type parameters
// are delayed and re-expanded innermost first once those parameters resolve.
//
// The package is single-threaded and re-entrant: an implementation may
// typecheck trees that contain further macro applications while its own
// expansion is still in progress. All mutable state lives in one Engine,
// created per compilation run.
package macros
