// Package registry maps human-readable module names and tags to
// content-addressed, hash-verified module bundles on disk.
//
// # On-disk layout
//
//	<root>/repositories.json      {"repositories": {name: {tag: hashSpec}}}
//	<root>/<hash>/module.json     {"main": "module.wasm", "entry": null, "link": []}
//	<root>/<hash>/<main>          the WASM binary; sha256(<main>) == <hash>
//
// The directory name is the expected digest, so verification needs no external
// trust store: tampering with a binary without renaming its directory is
// detected when the registry is loaded.
//
// # Loading
//
// Load reads the manifest once and validates every referenced module. A tag
// whose module fails to load is skipped and logged; a repository left with no
// tags is dropped. Only failures on the manifest itself are returned.
//
// The resulting Registry is immutable and safe for concurrent use. GetModule
// performs no I/O and returns shared *Module values that callers must not
// modify.
package registry
