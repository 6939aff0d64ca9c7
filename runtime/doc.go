// Package runtime executes verified registry modules through pluggable backends.
//
// # Quick Start
//
//	import _ "github.com/wasmship/wasmship/engine" // registers "wazero"
//
//	mod, _ := reg.GetModule("mymod", "latest")
//	rt, err := runtime.New(ctx, runtime.KindWazero, mod, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	results, err := rt.Invoke(ctx, "add", []string{"300", "206"})
//	fmt.Println(results[0]) // 506
//
// # Backends
//
// A Backend compiles one binary and answers two questions: which functions
// it exports (FunctionExports) and what a call returns (Invoke). Backends
// register a Factory under a Kind from an init function:
//
//	func init() {
//	    runtime.Register("wazero", New)
//	}
//
// Create and New select a backend by Kind; call sites never name the
// concrete type.
//
// # Values
//
// Parameters arrive as strings and are parsed according to the declared
// ValueType of each parameter. Only ValueTypeI32 is supported:
//
//	WASM Type   ValueType           WIT
//	──────────────────────────────────────
//	i32         ValueTypeI32        s32
//	other       ValueTypeUnsupported
//
// Functions using unsupported types still appear in FunctionExports so they
// can be listed, but invoking them fails.
//
// # Isolation
//
// Compiled modules are shared (see Cache); every Invoke runs in a fresh
// instance, so calls never observe each other's memory or globals.
//
// # Errors
//
// Every invocation failure is an execution error (errors.ErrExecution):
// unknown function, arity mismatch, parameter parse failure, trap, timeout
// and result type mismatch.
package runtime
