// Package engine provides the wazero backend for the runtime package.
//
// Importing the package registers the backend under runtime.KindWazero:
//
//	import _ "github.com/wasmship/wasmship/engine"
//
// # Lifecycle
//
// Each WazeroBackend owns one wazero.Runtime holding one compiled module:
//
//  1. NewWazeroBackend reads the binary and compiles it
//  2. FunctionExports introspects exported functions once and caches them
//  3. Invoke instantiates an anonymous instance, calls the export and closes
//     the instance
//  4. Close releases the compiled code
//
// Instantiation skips start functions, so _start is invoked only when asked.
// The runtime is created with WithCloseOnContextDone, so a cancelled or
// expired context terminates a running call.
//
// # Type Mapping
//
//	WASM Type   runtime.ValueType
//	──────────────────────────────
//	i32         ValueTypeI32
//	i64, f32,   ValueTypeUnsupported
//	f64, ...
//
// # WASI
//
// Modules importing wasi_snapshot_preview1 get the wazero host
// implementation, instantiated lazily on the first call.
package engine
