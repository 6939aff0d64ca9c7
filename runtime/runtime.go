package runtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/registry"
)

// defaultEntries are tried in order when neither the caller nor the module
// descriptor names a function.
var defaultEntries = []string{"_start", "run", "main"}

// Runtime binds a verified module to a backend.
type Runtime struct {
	backend Backend
	module  *registry.Module
	timeout time.Duration
}

// New compiles mod with the backend registered as kind.
func New(ctx context.Context, kind Kind, mod *registry.Module, cfg Config) (*Runtime, error) {
	backend, err := Create(ctx, kind, mod.MainPath(), cfg)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(mod, backend, cfg), nil
}

// NewWithBackend wraps an already created backend.
func NewWithBackend(mod *registry.Module, backend Backend, cfg Config) *Runtime {
	return &Runtime{
		backend: backend,
		module:  mod,
		timeout: cfg.Timeout,
	}
}

// Module returns the module this runtime executes.
func (r *Runtime) Module() *registry.Module {
	return r.module
}

// Exports returns the module's function exports.
func (r *Runtime) Exports(ctx context.Context) (FunctionExports, error) {
	return r.backend.FunctionExports(ctx)
}

// ResolveFunction returns function unchanged when set. Otherwise it picks the
// descriptor entry, then the first exported default entry, then the sole
// export.
func (r *Runtime) ResolveFunction(ctx context.Context, function string) (string, error) {
	if function != "" {
		return function, nil
	}
	if r.module != nil && r.module.Entry != "" {
		return r.module.Entry, nil
	}

	exports, err := r.backend.FunctionExports(ctx)
	if err != nil {
		return "", err
	}
	for _, name := range defaultEntries {
		if _, ok := exports[name]; ok {
			return name, nil
		}
	}
	if len(exports) == 1 {
		for name := range exports {
			return name, nil
		}
	}
	return "", errors.Execution("no function given and no entry point among %d exports", len(exports))
}

// Invoke resolves function and calls it, bounded by the configured timeout.
func (r *Runtime) Invoke(ctx context.Context, function string, params []string) ([]Value, error) {
	name, err := r.ResolveFunction(ctx, function)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	results, err := r.backend.Invoke(ctx, name, params)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.ExecutionCause(errors.PhaseInvoke, "function "+name+" exceeded "+r.timeout.String(), err)
		}
		return nil, err
	}

	Logger().Debug("invoked",
		zap.String("hash", r.hash()),
		zap.String("function", name),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))
	return results, nil
}

// Close releases the backend.
func (r *Runtime) Close(ctx context.Context) error {
	return r.backend.Close(ctx)
}

func (r *Runtime) hash() string {
	if r.module == nil {
		return ""
	}
	return r.module.Hash()
}
