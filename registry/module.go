package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/integrity"
)

// DescriptorFile is the per-module descriptor inside <root>/<hash>/.
const DescriptorFile = "module.json"

// Module is one verified, executable unit.
type Module struct {
	// Path is the module directory, <root>/<hash>.
	Path string
	// Digest is the content address; its encoded part names Path.
	Digest digest.Digest
	// Main is the filename of the primary WASM binary inside Path.
	Main string
	// Entry is the default export to call, empty if unset.
	Entry string
	// Link lists modules this one depends on, as "name" or "name:tag".
	Link []string
}

type descriptor struct {
	Entry *string  `json:"entry"`
	Main  string   `json:"main"`
	Link  []string `json:"link"`
}

// Hash returns the hex-encoded digest, which is also the directory name.
func (m *Module) Hash() string {
	return m.Digest.Encoded()
}

// MainPath returns the absolute location of the main binary.
func (m *Module) MainPath() string {
	return filepath.Join(m.Path, m.Main)
}

// Verify re-hashes the main binary against the module's digest.
func (m *Module) Verify() error {
	return integrity.VerifyFile(m.MainPath(), m.Digest)
}

// LoadModule constructs the module stored under root for digest d and
// validates it. The returned module is never one whose binary mismatches d.
func LoadModule(root string, d digest.Digest) (*Module, error) {
	if err := d.Validate(); err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("invalid module digest %q", d).
			Cause(err).
			Build()
	}

	dir := filepath.Join(root, d.Encoded())
	descPath := filepath.Join(dir, DescriptorFile)

	data, err := os.ReadFile(descPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseLoad, "module descriptor", descPath)
		}
		return nil, errors.IO(errors.PhaseLoad, "read "+descPath, err)
	}

	var desc descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, errors.IO(errors.PhaseLoad, "parse "+descPath, err)
	}

	if problem := checkMain(desc.Main); problem != "" {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Path(descPath).
			Detail("%s", problem).
			Build()
	}

	mod := &Module{
		Path:   dir,
		Digest: d,
		Main:   desc.Main,
		Link:   desc.Link,
	}
	if desc.Entry != nil {
		mod.Entry = *desc.Entry
	}

	if _, err := os.Stat(mod.MainPath()); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(errors.PhaseLoad, "main binary", mod.MainPath())
		}
		return nil, errors.IO(errors.PhaseLoad, "stat "+mod.MainPath(), err)
	}

	if err := mod.Verify(); err != nil {
		return nil, err
	}

	return mod, nil
}

// checkMain rejects main filenames that escape the module directory.
func checkMain(main string) string {
	switch {
	case main == "":
		return "descriptor has no main binary"
	case main == "." || main == "..":
		return "main binary " + main + " is not a file"
	case strings.ContainsAny(main, `/\`):
		return "main binary " + main + " must be a plain filename"
	}
	return ""
}
