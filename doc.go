// Package wasmship stores, verifies and runs WebAssembly modules on behalf of
// local clients.
//
// A daemon (cmd/wasmshipd) resolves human-readable name:tag references to
// content-addressed module bundles, checks each binary against its SHA-256
// address, and invokes exported functions in a sandboxed engine. A client
// (cmd/wasmship) sends commands over a Unix socket and streams results back.
//
// # Architecture Overview
//
//	wasmship/
//	├── integrity/     SHA-256 content digests and file verification
//	├── registry/      repositories.json index and module.json bundles
//	├── runtime/       backend abstraction, value marshaling, compiled cache
//	├── engine/        wazero backend, registered as "wazero"
//	├── protocol/      wire types, routes and status mapping
//	├── daemon/        Unix socket HTTP server and bounded executor
//	├── client/        daemon client
//	├── config/        viper-based daemon configuration
//	└── errors/        structured error taxonomy
//
// # Registry Layout
//
//	<root>/repositories.json     {"repositories": {name: {tag: "sha256:<hex>"}}}
//	<root>/<hex>/module.json     {"main": "module.wasm", "entry": null, "link": []}
//	<root>/<hex>/module.wasm     sha256(module.wasm) == <hex>
//
// # Quick Start
//
// Backends register themselves on import:
//
//	import _ "github.com/wasmship/wasmship/engine"
//
//	reg, err := registry.Load("/var/lib/wasmship")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mod, ok := reg.GetModule("mymod", "latest")
//	if !ok {
//	    log.Fatal("mymod:latest not found")
//	}
//
//	rt, err := runtime.New(ctx, runtime.KindWazero, mod, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	results, err := rt.Invoke(ctx, "add", []string{"300", "206"})
//	fmt.Println(results[0]) // 506
//
// # Error Handling
//
// Errors are *errors.Error values carrying a Phase and a Kind. Match kinds
// with the sentinels:
//
//	if errors.Is(err, wserrors.ErrBrokenFile) {
//	    // binary does not match its content address
//	}
package wasmship
