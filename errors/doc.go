// Package errors provides structured error types for wasmship.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The kinds mirror the failure taxonomy of the registry and runtime:
//
//	not_found      a manifest, descriptor, binary or export is missing
//	broken_file    a binary's digest does not match its content address
//	io             an underlying filesystem or network failure
//	execution      any failure inside the runtime (missing function, arity,
//	               parameter parsing, traps, result type mismatch)
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindNotFound).
//		Path("/var/lib/wasmship/ab12.../module.json").
//		Detail("module descriptor not found").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BrokenFile(path, expected, actual)
//	err := errors.Execution("function %s not found", name)
//
// Sentinels match on kind alone, so callers can write:
//
//	if errors.Is(err, wserrors.ErrBrokenFile) { ... }
package errors
