package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// InstantiateWASI instantiates WASI preview1 host functions into r so
// modules built for wasip1 can be instantiated. Guests get no preopened
// directories and their stdio is discarded.
func InstantiateWASI(ctx context.Context, r wazero.Runtime) (api.Closer, error) {
	if r.Module(wasi_snapshot_preview1.ModuleName) != nil {
		return nil, nil
	}
	return wasi_snapshot_preview1.Instantiate(ctx, r)
}

// importsWASI reports whether any function import targets WASI preview1.
func importsWASI(compiled wazero.CompiledModule) bool {
	for _, def := range compiled.ImportedFunctions() {
		if module, _, ok := def.Import(); ok && module == wasi_snapshot_preview1.ModuleName {
			return true
		}
	}
	return false
}
