package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	wserrors "github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/integrity"
	"github.com/wasmship/wasmship/internal/testutil"
)

func TestLoad_ResolvesEveryTag(t *testing.T) {
	root := testutil.NewRegistry(t)

	reg, err := Load(root)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if diff := cmp.Diff([]string{"multi", "mymod"}, reg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	addHash := testutil.Hash(testutil.AddWASM)
	for _, tag := range []string{"latest", "v1"} {
		mod, ok := reg.GetModule("mymod", tag)
		if !ok {
			t.Fatalf("mymod:%s not found", tag)
		}
		if mod.Hash() != addHash {
			t.Errorf("mymod:%s hash = %s, want %s", tag, mod.Hash(), addHash)
		}
		if mod.Main != "module.wasm" {
			t.Errorf("mymod:%s main = %q", tag, mod.Main)
		}
		if mod.Path != filepath.Join(root, addHash) {
			t.Errorf("mymod:%s path = %q", tag, mod.Path)
		}
	}

	latest, _ := reg.GetModule("mymod", "latest")
	v1, _ := reg.GetModule("mymod", "v1")
	if latest != v1 {
		t.Error("tags with the same hash should share one module")
	}

	multi, ok := reg.GetModule("multi", "latest")
	if !ok {
		t.Fatal("multi:latest not found")
	}
	if multi.Entry != "add" {
		t.Errorf("multi entry = %q, want add", multi.Entry)
	}

	repo, ok := reg.Repository("mymod")
	if !ok {
		t.Fatal("Repository(mymod) not found")
	}
	if diff := cmp.Diff([]string{"latest", "v1"}, repo.Tags()); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestGetModule_Missing(t *testing.T) {
	reg, err := Load(testutil.NewRegistry(t))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if _, ok := reg.GetModule("nope", "latest"); ok {
		t.Error("unknown name should not resolve")
	}
	if _, ok := reg.GetModule("mymod", "nope"); ok {
		t.Error("unknown tag should not resolve")
	}
}

func TestLoad_CorruptedBinaryExcluded(t *testing.T) {
	root := t.TempDir()
	addHash := testutil.WriteModule(t, root, testutil.AddWASM, "")
	multiHash := testutil.WriteModule(t, root, testutil.MultiWASM, "")
	testutil.WriteManifest(t, root, map[string]map[string]string{
		"mymod": {"latest": "sha256:" + addHash},
		"multi": {"latest": multiHash, "stable": multiHash},
	})

	// Flip one byte of the add binary
	path := filepath.Join(root, addHash, "module.wasm")
	data := append([]byte(nil), testutil.AddWASM...)
	data[len(data)-2] ^= 0x01
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(root)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if _, ok := reg.GetModule("mymod", "latest"); ok {
		t.Error("corrupted module must not be returned")
	}
	if _, ok := reg.Repository("mymod"); ok {
		t.Error("repository with no loadable tags should be dropped")
	}
	if _, ok := reg.GetModule("multi", "stable"); !ok {
		t.Error("intact module should still load")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestLoad_SkipsBrokenTags(t *testing.T) {
	root := t.TempDir()
	addHash := testutil.WriteModule(t, root, testutil.AddWASM, "")
	missingMain := testutil.Hash([]byte("no binary"))
	testutil.WriteModuleAt(t, root, missingMain, nil, testutil.Descriptor{Main: "module.wasm"})

	testutil.WriteManifest(t, root, map[string]map[string]string{
		"mymod": {
			"latest":   "sha256:" + addHash,
			"nodir":    "sha256:" + testutil.Hash([]byte("absent")),
			"nomain":   missingMain,
			"badspec":  "sha256:xyz",
			"fallback": "md5:" + addHash,
		},
	})

	reg, err := Load(root)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	repo, ok := reg.Repository("mymod")
	if !ok {
		t.Fatal("mymod should survive with its good tags")
	}
	if diff := cmp.Diff([]string{"fallback", "latest"}, repo.Tags()); diff != "" {
		t.Errorf("Tags mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ManifestErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent"))
		if !errors.Is(err, wserrors.ErrNotFound) {
			t.Errorf("expected not_found, got %v", err)
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		_, err := Load(t.TempDir())
		if !errors.Is(err, wserrors.ErrNotFound) {
			t.Errorf("expected not_found, got %v", err)
		}
	})

	t.Run("malformed manifest", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, ManifestFile), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(root)
		if !errors.Is(err, wserrors.ErrIO) {
			t.Errorf("expected io, got %v", err)
		}
	})

	t.Run("no repositories key", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, ManifestFile), []byte(`{}`), 0o644); err != nil {
			t.Fatal(err)
		}
		reg, err := Load(root)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if reg.Len() != 0 {
			t.Errorf("Len = %d, want 0", reg.Len())
		}
	})
}

func TestLoad_LinkModes(t *testing.T) {
	root := t.TempDir()
	addHash := testutil.WriteModule(t, root, testutil.AddWASM, "")
	linked := testutil.WriteModule(t, root, testutil.MultiWASM, "", "mymod:latest", "ghost")
	testutil.WriteManifest(t, root, map[string]map[string]string{
		"mymod": {"latest": addHash},
		"multi": {"latest": linked},
	})

	lenient, err := Load(root)
	if err != nil {
		t.Fatalf("Load lenient error: %v", err)
	}
	if _, ok := lenient.GetModule("multi", "latest"); !ok {
		t.Error("lenient mode should ignore unresolved links")
	}

	strict, err := Load(root, WithLinkMode(LinkStrict))
	if err != nil {
		t.Fatalf("Load strict error: %v", err)
	}
	if _, ok := strict.GetModule("multi", "latest"); ok {
		t.Error("strict mode should exclude a module linking to an unknown repository")
	}
	if _, ok := strict.GetModule("mymod", "latest"); !ok {
		t.Error("modules without links are unaffected by strict mode")
	}
}

func TestLoad_StrictLinksResolveAgainstIndex(t *testing.T) {
	root := t.TempDir()
	addHash := testutil.WriteModule(t, root, testutil.AddWASM, "")

	// broken:latest is in the manifest but its binary does not match.
	broken := testutil.Hash([]byte("original"))
	testutil.WriteModuleAt(t, root, broken, []byte("tampered"), testutil.Descriptor{Main: "module.wasm", Link: []string{}})

	dependsOnBroken := testutil.WriteModule(t, root, testutil.MultiWASM, "", "broken:latest")
	// Chained: valid binary, but its only link is pruned in strict mode.
	chained := testutil.WriteModule(t, root, testutil.SpinWASM, "", "multi")
	goodLink := testutil.WriteModule(t, root, testutil.InvalidWASM, "", "mymod:latest")

	testutil.WriteManifest(t, root, map[string]map[string]string{
		"mymod":  {"latest": addHash},
		"broken": {"latest": broken},
		"multi":  {"latest": dependsOnBroken},
		"spin":   {"latest": chained},
		"ok":     {"latest": goodLink},
	})

	reg, err := Load(root, WithLinkMode(LinkStrict))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff([]string{"mymod", "ok"}, reg.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}

	lenient, err := Load(root)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff([]string{"multi", "mymod", "ok", "spin"}, lenient.Names()); diff != "" {
		t.Errorf("lenient Names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLinkMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LinkMode
		wantErr bool
	}{
		{in: "", want: LinkLenient},
		{in: "lenient", want: LinkLenient},
		{in: "STRICT", want: LinkStrict},
		{in: "paranoid", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLinkMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLinkMode(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseLinkMode(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestLoadModule_Standalone(t *testing.T) {
	root := t.TempDir()
	hash := testutil.WriteModule(t, root, testutil.AddWASM, "add", "dep")

	d, err := integrity.ParseHashSpec(hash)
	if err != nil {
		t.Fatal(err)
	}

	mod, err := LoadModule(root, d)
	if err != nil {
		t.Fatalf("LoadModule error: %v", err)
	}
	if mod.Entry != "add" {
		t.Errorf("Entry = %q", mod.Entry)
	}
	if diff := cmp.Diff([]string{"dep"}, mod.Link); diff != "" {
		t.Errorf("Link mismatch (-want +got):\n%s", diff)
	}
	if err := mod.Verify(); err != nil {
		t.Errorf("Verify error: %v", err)
	}

	// Corrupt after load: Verify and a fresh LoadModule both report broken_file
	if err := os.WriteFile(mod.MainPath(), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mod.Verify(); !errors.Is(err, wserrors.ErrBrokenFile) {
		t.Errorf("Verify after tamper = %v, want broken_file", err)
	}
	if _, err := LoadModule(root, d); !errors.Is(err, wserrors.ErrBrokenFile) {
		t.Errorf("LoadModule after tamper = %v, want broken_file", err)
	}
}

func TestLoadModule_Errors(t *testing.T) {
	root := t.TempDir()

	absent, _ := integrity.ParseHashSpec(testutil.Hash([]byte("absent")))
	if _, err := LoadModule(root, absent); !errors.Is(err, wserrors.ErrNotFound) {
		t.Errorf("missing descriptor = %v, want not_found", err)
	}

	noMain := testutil.Hash([]byte("no main"))
	testutil.WriteModuleAt(t, root, noMain, nil, testutil.Descriptor{Main: "module.wasm"})
	d, _ := integrity.ParseHashSpec(noMain)
	if _, err := LoadModule(root, d); !errors.Is(err, wserrors.ErrNotFound) {
		t.Errorf("missing main = %v, want not_found", err)
	}

	escape := testutil.Hash([]byte("escape"))
	testutil.WriteModuleAt(t, root, escape, nil, testutil.Descriptor{Main: "../repositories.json"})
	d, _ = integrity.ParseHashSpec(escape)
	if _, err := LoadModule(root, d); !errors.Is(err, wserrors.ErrInvalidInput) {
		t.Errorf("escaping main = %v, want invalid_input", err)
	}

	// Verbs in the filename are reported literally.
	verbs := testutil.Hash([]byte("verbs"))
	testutil.WriteModuleAt(t, root, verbs, nil, testutil.Descriptor{Main: "x/%d%s"})
	d, _ = integrity.ParseHashSpec(verbs)
	_, err := LoadModule(root, d)
	if !errors.Is(err, wserrors.ErrInvalidInput) {
		t.Errorf("main with verbs = %v, want invalid_input", err)
	} else if !strings.Contains(err.Error(), "main binary x/%d%s must be a plain filename") {
		t.Errorf("error should quote the filename verbatim: %v", err)
	}

	badJSON := testutil.Hash([]byte("bad json"))
	if err := os.MkdirAll(filepath.Join(root, badJSON), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, badJSON, DescriptorFile), []byte("["), 0o644); err != nil {
		t.Fatal(err)
	}
	d, _ = integrity.ParseHashSpec(badJSON)
	if _, err := LoadModule(root, d); !errors.Is(err, wserrors.ErrIO) {
		t.Errorf("malformed descriptor = %v, want io", err)
	}
}
