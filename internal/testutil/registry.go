package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// Hash returns the hex SHA-256 of data, the content address of a module.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Descriptor mirrors module.json for fixture writing.
type Descriptor struct {
	Entry *string  `json:"entry"`
	Main  string   `json:"main"`
	Link  []string `json:"link"`
}

// WriteModule stores wasm as <root>/<hash>/module.wasm with a descriptor and
// returns the hash.
func WriteModule(t testing.TB, root string, wasm []byte, entry string, links ...string) string {
	t.Helper()

	desc := Descriptor{Main: "module.wasm", Link: links}
	if desc.Link == nil {
		desc.Link = []string{}
	}
	if entry != "" {
		desc.Entry = &entry
	}

	hash := Hash(wasm)
	WriteModuleAt(t, root, hash, wasm, desc)
	return hash
}

// WriteModuleAt stores wasm under an explicit directory name, which lets tests
// build bundles whose directory does not match their content.
func WriteModuleAt(t testing.TB, root, hash string, wasm []byte, desc Descriptor) {
	t.Helper()

	dir := filepath.Join(root, hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "module.json"), data, 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	if wasm != nil {
		if err := os.WriteFile(filepath.Join(dir, desc.Main), wasm, 0o644); err != nil {
			t.Fatalf("write binary: %v", err)
		}
	}
}

// WriteManifest writes <root>/repositories.json from name -> tag -> hashSpec.
func WriteManifest(t testing.TB, root string, repos map[string]map[string]string) {
	t.Helper()

	data, err := json.Marshal(map[string]any{"repositories": repos})
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "repositories.json"), data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

// NewRegistry builds a registry root holding the add and multi fixtures:
//
//	mymod:latest  -> AddWASM   (sha256: prefixed spec)
//	mymod:v1      -> AddWASM   (bare spec)
//	multi:latest  -> MultiWASM (entry "add")
func NewRegistry(t testing.TB) string {
	t.Helper()

	root := t.TempDir()
	addHash := WriteModule(t, root, AddWASM, "")
	multiHash := WriteModule(t, root, MultiWASM, "add")
	WriteManifest(t, root, map[string]map[string]string{
		"mymod": {"latest": "sha256:" + addHash, "v1": addHash},
		"multi": {"latest": "sha256:" + multiHash},
	})
	return root
}
