package engine

import (
	"context"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/runtime"
)

func init() {
	runtime.Register(runtime.KindWazero, func(ctx context.Context, path string, cfg runtime.Config) (runtime.Backend, error) {
		return NewWazeroBackend(ctx, path, cfg)
	})
}

// WazeroBackend implements runtime.Backend on top of a wazero runtime that
// holds exactly one compiled module.
type WazeroBackend struct {
	runtime     wazero.Runtime
	compiled    wazero.CompiledModule
	exports     runtime.FunctionExports
	path        string
	wasiMu      sync.Mutex
	exportsOnce sync.Once
	wasiDone    bool
}

// NewWazeroBackend reads and compiles the binary at path.
func NewWazeroBackend(ctx context.Context, path string, cfg runtime.Config) (*WazeroBackend, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseCompile, "binary", path)
		}
		return nil, errors.IO(errors.PhaseCompile, "read "+path, err)
	}
	return CompileWazero(ctx, path, wasm, cfg)
}

// CompileWazero compiles wasm; path is only used for diagnostics.
func CompileWazero(ctx context.Context, path string, wasm []byte, cfg runtime.Config) (*WazeroBackend, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		_ = r.Close(ctx)
		return nil, errors.New(errors.PhaseCompile, errors.KindExecution).
			Path(path).
			Detail("compile failed").
			Cause(err).
			Build()
	}

	Logger().Debug("compiled",
		zap.String("path", path),
		zap.Int("size", len(wasm)),
		zap.Int("exports", len(compiled.ExportedFunctions())))

	return &WazeroBackend{
		runtime:  r,
		compiled: compiled,
		path:     path,
	}, nil
}

// FunctionExports maps each exported function to its signature. Non-function
// exports are ignored.
func (b *WazeroBackend) FunctionExports(_ context.Context) (runtime.FunctionExports, error) {
	b.exportsOnce.Do(func() {
		defs := b.compiled.ExportedFunctions()
		exports := make(runtime.FunctionExports, len(defs))
		for name, def := range defs {
			exports[name] = runtime.FunctionExport{
				Name:    name,
				Params:  valueTypes(def.ParamTypes()),
				Results: valueTypes(def.ResultTypes()),
			}
		}
		b.exports = exports
	})
	return b.exports, nil
}

// Invoke instantiates the module fresh, calls function and closes the
// instance.
func (b *WazeroBackend) Invoke(ctx context.Context, function string, params []string) ([]runtime.Value, error) {
	exports, err := b.FunctionExports(ctx)
	if err != nil {
		return nil, err
	}

	fn, ok := exports[function]
	if !ok {
		return nil, errors.Execution("function %s not found", function)
	}
	if len(params) != len(fn.Params) {
		return nil, errors.Execution("function %s params count not match %d/%d", function, len(params), len(fn.Params))
	}
	if !fn.Invokable() {
		return nil, errors.Execution("function %s has unsupported signature %s", function, fn.Signature())
	}

	if err := b.ensureWASI(ctx); err != nil {
		return nil, err
	}

	// Anonymous instances can coexist in one runtime; _start is not run
	// implicitly so it stays an ordinary export.
	mod, err := b.runtime.InstantiateModule(ctx, b.compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return nil, errors.ExecutionCause(errors.PhaseInvoke, "instantiate "+b.path, err)
	}
	defer mod.Close(ctx)

	args, err := runtime.ParseParams(fn, params)
	if err != nil {
		return nil, err
	}

	stack := make([]uint64, max(len(fn.Params), len(fn.Results)))
	for i, v := range args {
		n, _ := v.AsI32()
		stack[i] = api.EncodeI32(n)
	}

	f := mod.ExportedFunction(function)
	if f == nil {
		return nil, errors.Execution("function %s not found", function)
	}
	if err := f.CallWithStack(ctx, stack); err != nil {
		return nil, errors.ExecutionCause(errors.PhaseInvoke, "call "+function, err)
	}

	resultTypes := f.Definition().ResultTypes()
	if len(resultTypes) != len(fn.Results) {
		return nil, errors.Execution("function %s returned %d results, declared %d", function, len(resultTypes), len(fn.Results))
	}
	results := make([]runtime.Value, len(fn.Results))
	for i, want := range fn.Results {
		v, err := fromRaw(resultTypes[i], want, stack[i])
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// Close releases the compiled module and its runtime.
func (b *WazeroBackend) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

// ensureWASI instantiates WASI preview1 once when the module imports it.
func (b *WazeroBackend) ensureWASI(ctx context.Context) error {
	b.wasiMu.Lock()
	defer b.wasiMu.Unlock()

	if b.wasiDone {
		return nil
	}
	if !importsWASI(b.compiled) {
		b.wasiDone = true
		return nil
	}
	if _, err := InstantiateWASI(ctx, b.runtime); err != nil {
		return errors.ExecutionCause(errors.PhaseInvoke, "instantiate WASI", err)
	}
	b.wasiDone = true
	return nil
}

func valueTypes(types []api.ValueType) []runtime.ValueType {
	out := make([]runtime.ValueType, len(types))
	for i, t := range types {
		out[i] = valueType(t)
	}
	return out
}

func valueType(t api.ValueType) runtime.ValueType {
	switch t {
	case api.ValueTypeI32:
		return runtime.ValueTypeI32
	default:
		return runtime.ValueTypeUnsupported
	}
}

// fromRaw converts a raw stack slot, checking the engine's reported type
// against the declared one.
func fromRaw(got api.ValueType, want runtime.ValueType, raw uint64) (runtime.Value, error) {
	if valueType(got) != want {
		return runtime.Value{}, errors.Execution("result type mismatch: declared %s, got %s", want, api.ValueTypeName(got))
	}
	switch want {
	case runtime.ValueTypeI32:
		return runtime.I32(api.DecodeI32(raw)), nil
	default:
		return runtime.Value{}, errors.Execution("unsupported result type %s", api.ValueTypeName(got))
	}
}
