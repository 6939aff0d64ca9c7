package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindNotFound,
				Path:   "/reg/abc/module.json",
				Detail: "module descriptor not found",
			},
			contains: []string{"[load]", "not_found", "/reg/abc/module.json", "module descriptor not found"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseInvoke,
				Kind:  KindExecution,
			},
			contains: []string{"[invoke]", "execution"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseManifest,
				Kind:   KindIO,
				Detail: "read manifest",
				Cause:  errors.New("permission denied"),
			},
			contains: []string{"[manifest]", "io", "read manifest", "caused by", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := IO(PhaseLoad, "read descriptor", cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := BrokenFile("/reg/abc/module.wasm", "sha256:aa", "sha256:bb")

	if !errors.Is(err, ErrBrokenFile) {
		t.Error("expected kind-only sentinel to match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("different kind should not match")
	}
	if !errors.Is(err, &Error{Phase: PhaseVerify, Kind: KindBrokenFile}) {
		t.Error("same phase and kind should match")
	}
	if errors.Is(err, &Error{Phase: PhaseLoad, Kind: KindBrokenFile}) {
		t.Error("different phase should not match")
	}

	wrapped := fmt.Errorf("load mymod:latest: %w", err)
	if !errors.Is(wrapped, ErrBrokenFile) {
		t.Error("expected match through fmt.Errorf wrapping")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(Execution("function %s not found", "nope")); got != KindExecution {
		t.Errorf("KindOf = %q, want %q", got, KindExecution)
	}
	if got := KindOf(fmt.Errorf("ctx: %w", NotFound(PhaseLoad, "main binary", "/x"))); got != KindNotFound {
		t.Errorf("KindOf wrapped = %q, want %q", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf plain = %q, want empty", got)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("eof")
	err := New(PhaseCompile, KindExecution).
		Path("/reg/abc/module.wasm").
		Detail("compile %s", "module.wasm").
		Cause(cause).
		Build()

	if err.Phase != PhaseCompile || err.Kind != KindExecution {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Detail != "compile module.wasm" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not in chain")
	}
}

func TestExecution_NoArgs(t *testing.T) {
	err := Execution("100% failure")
	if err.Detail != "100% failure" {
		t.Errorf("Detail = %q, format verbs must not be interpreted without args", err.Detail)
	}
}
