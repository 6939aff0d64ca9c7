package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	wserrors "github.com/wasmship/wasmship/errors"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestParseHashSpec(t *testing.T) {
	hash := sha256Hex([]byte("module"))

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "bare digest", spec: hash},
		{name: "sha256 prefixed", spec: "sha256:" + hash},
		{name: "unknown algorithm falls back", spec: "blake3:" + hash},
		{name: "too short", spec: "sha256:abcd", wantErr: true},
		{name: "uppercase hex", spec: strings.ToUpper(hash), wantErr: true},
		{name: "empty", spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseHashSpec(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %s", tt.spec, d)
				}
				if !errors.Is(err, wserrors.ErrInvalidInput) {
					t.Errorf("expected invalid_input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHashSpec(%q) error: %v", tt.spec, err)
			}
			if d.Algorithm() != Algorithm {
				t.Errorf("algorithm = %s, want sha256", d.Algorithm())
			}
			if d.Encoded() != hash {
				t.Errorf("encoded = %s, want %s", d.Encoded(), hash)
			}
		})
	}
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("\x00asm\x01\x00\x00\x00")
	path := filepath.Join(dir, "module.wasm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	expected, err := ParseHashSpec(sha256Hex(data))
	if err != nil {
		t.Fatalf("ParseHashSpec error: %v", err)
	}

	if err := VerifyFile(path, expected); err != nil {
		t.Fatalf("VerifyFile error: %v", err)
	}

	// Corrupt one byte
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	err = VerifyFile(path, expected)
	if !errors.Is(err, wserrors.ErrBrokenFile) {
		t.Fatalf("expected broken_file after corruption, got %v", err)
	}
	if !strings.Contains(err.Error(), "sha256:"+sha256Hex(data)) {
		t.Errorf("error should report actual digest: %v", err)
	}
}

func TestVerifyFile_Missing(t *testing.T) {
	expected, _ := ParseHashSpec(sha256Hex([]byte("x")))
	err := VerifyFile(filepath.Join(t.TempDir(), "missing.wasm"), expected)
	if !errors.Is(err, wserrors.ErrNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestFileDigest(t *testing.T) {
	data := []byte("hello")
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest error: %v", err)
	}
	if d.String() != "sha256:"+sha256Hex(data) {
		t.Errorf("FileDigest = %s", d)
	}
}
