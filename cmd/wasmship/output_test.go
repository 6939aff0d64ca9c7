package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.bytecodealliance.org/wit"
	"gopkg.in/yaml.v3"

	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/runtime"
)

var sampleExports = []protocol.Export{
	{Name: "wide", Params: []string{"unsupported"}, Results: []string{"unsupported"}},
	{Name: "add", Params: []string{"i32", "i32"}, Results: []string{"i32"}},
	{Name: "boom", Params: []string{}, Results: []string{}},
}

func TestRenderExports_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := renderExports(&buf, protocol.Reference{Name: "multi", Tag: "latest"}, sampleExports, formatTable); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "FUNCTION") {
		t.Errorf("header = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); f[0] != "add" || !strings.Contains(lines[1], "i32, i32") {
		t.Errorf("first row = %q", lines[1])
	}
	if f := strings.Fields(lines[2]); len(f) != 3 || f[0] != "boom" || f[1] != "-" || f[2] != "-" {
		t.Errorf("boom row = %q", lines[2])
	}
	// Columns line up.
	if strings.Index(lines[1], "i32") != strings.Index(lines[0], "PARAMS") {
		t.Errorf("params column misaligned:\n%s", buf.String())
	}
}

func TestRenderExports_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := renderExports(&buf, protocol.Reference{Name: "multi", Tag: "v1"}, sampleExports, formatYAML); err != nil {
		t.Fatal(err)
	}

	var doc moduleExports
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	want := moduleExports{
		Module: "multi:v1",
		Exports: []protocol.Export{
			{Name: "add", Params: []string{"i32", "i32"}, Results: []string{"i32"}},
			{Name: "boom", Params: []string{}, Results: []string{}},
			{Name: "wide", Params: []string{"unsupported"}, Results: []string{"unsupported"}},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("yaml mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderExports_UnknownFormat(t *testing.T) {
	err := renderExports(&bytes.Buffer{}, protocol.Reference{Name: "m", Tag: "latest"}, nil, "xml")
	if err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}

func TestWitTypeStr(t *testing.T) {
	tests := []struct {
		typ      wit.Type
		fallback string
		want     string
	}{
		{runtime.ValueTypeI32.WIT(), "i32", "s32"},
		{runtime.ValueTypeUnsupported.WIT(), "i64", "i64"},
		{wit.String{}, "", "string"},
		{wit.Bool{}, "", "bool"},
	}
	for _, tt := range tests {
		if got := witTypeStr(tt.typ, tt.fallback); got != tt.want {
			t.Errorf("witTypeStr(%T, %q) = %q, want %q", tt.typ, tt.fallback, got, tt.want)
		}
	}
}
