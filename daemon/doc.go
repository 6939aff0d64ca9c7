// Package daemon serves the wasmship control protocol on a Unix socket.
//
// The daemon owns an immutable registry.Registry loaded at startup. Each
// connection carries exactly one request; keep-alives are disabled. A run
// command resolves its module reference, compiles the module once (shared
// through runtime.Cache), and invokes the function in a fresh instance on a
// bounded executor. Results are streamed back one line per value.
//
// Lifecycle:
//
//	Created -> Starting -> Running -> Stopping -> Stopped
//	               \-> Failed (socket could not be bound)
//
// Per-request failures become error responses and never stop the listener.
package daemon
