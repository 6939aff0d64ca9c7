package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wasmship/wasmship/errors"
)

// Backend executes one compiled module. Implementations must be safe for
// concurrent Invoke calls; each call runs in a fresh instance.
type Backend interface {
	// FunctionExports introspects the module's function exports. The result
	// is computed once and cached.
	FunctionExports(ctx context.Context) (FunctionExports, error)

	// Invoke calls function with string parameters parsed per its signature.
	Invoke(ctx context.Context, function string, params []string) ([]Value, error)

	// Close releases the compiled module.
	Close(ctx context.Context) error
}

// Config holds backend settings shared by every kind.
type Config struct {
	// MemoryLimitPages caps linear memory per instance in 64KiB pages.
	// 0 means the engine default.
	MemoryLimitPages uint32

	// Timeout bounds a single Invoke. 0 disables the limit.
	Timeout time.Duration
}

// Kind names a registered backend.
type Kind string

// KindWazero is the default backend.
const KindWazero Kind = "wazero"

// Factory compiles the binary at path.
type Factory func(ctx context.Context, path string, cfg Config) (Backend, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Kind]Factory)
)

// Register makes a backend available under kind. It panics if kind is
// registered twice or factory is nil.
func Register(kind Kind, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("runtime: Register factory is nil")
	}
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("runtime: Register called twice for %q", kind))
	}
	factories[kind] = factory
}

// Kinds returns the registered backend kinds in sorted order.
func Kinds() []Kind {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// CheckKind reports an unsupported error unless kind has a registered
// backend. An empty kind selects KindWazero.
func CheckKind(kind Kind) error {
	_, err := lookup(kind)
	return err
}

// Create compiles the binary at path with the backend registered as kind.
// An empty kind selects KindWazero.
func Create(ctx context.Context, kind Kind, path string, cfg Config) (Backend, error) {
	factory, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	return factory(ctx, path, cfg)
}

func lookup(kind Kind) (Factory, error) {
	if kind == "" {
		kind = KindWazero
	}

	factoriesMu.RLock()
	factory, ok := factories[kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.Unsupported(errors.PhaseCompile, fmt.Sprintf("runtime %q (registered: %v)", kind, Kinds()))
	}
	return factory, nil
}
