package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	wserrors "github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/protocol"
)

// serve runs handler on a fresh Unix socket and returns its path.
func serve(t *testing.T, handler http.Handler) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "wc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "c.sock")

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: handler}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })
	return path
}

func TestClient_Run(t *testing.T) {
	var got protocol.Command
	path := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != protocol.RouteCommands {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("506\n7\n"))
	}))

	c := New(path)
	cmd := protocol.Command{Command: protocol.CommandRun, Module: "mymod", Function: "add", Args: []string{"300", "206"}}

	lines, err := c.Call(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if diff := cmp.Diff([]string{"506", "7"}, lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(cmd, got); diff != "" {
		t.Errorf("sent command mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ResponseError(t *testing.T) {
	path := serve(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(protocol.HeaderErrorKind, string(wserrors.KindNotFound))
		http.Error(w, "module nope:latest not found", http.StatusNotFound)
	}))

	err := New(path).Run(context.Background(), protocol.Command{Command: protocol.CommandRun, Module: "nope"}, &strings.Builder{})

	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ResponseError, got %v", err)
	}
	if re.Status != http.StatusNotFound || re.Kind != wserrors.KindNotFound {
		t.Errorf("got %d %s", re.Status, re.Kind)
	}
	if re.Message != "module nope:latest not found" {
		t.Errorf("Message = %q", re.Message)
	}
	if !errors.Is(err, wserrors.ErrNotFound) {
		t.Error("ResponseError should match the not_found sentinel")
	}
	if errors.Is(err, wserrors.ErrExecution) {
		t.Error("ResponseError should not match other kinds")
	}
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent.sock"))
	err := c.Run(context.Background(), protocol.Command{Command: protocol.CommandRun}, &strings.Builder{})
	if !errors.Is(err, wserrors.ErrInvalidInput) {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestClient_NoDaemon(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent.sock"))
	_, err := c.Ping(context.Background())
	if !errors.Is(err, wserrors.ErrIO) {
		t.Errorf("expected io error, got %v", err)
	}
}

func TestClient_ExportsAndPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+protocol.RouteExports, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]protocol.Export{
			{Name: r.PathValue("name") + "-" + r.PathValue("tag"), Params: []string{"i32"}, Results: []string{}},
		})
	})
	mux.HandleFunc("GET "+protocol.RoutePing, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(protocol.Phrase))
	})
	c := New(serve(t, mux))
	ctx := context.Background()

	exports, err := c.Exports(ctx, protocol.Reference{Name: "mymod", Tag: "v1"})
	if err != nil {
		t.Fatalf("Exports failed: %v", err)
	}
	if len(exports) != 1 || exports[0].Name != "mymod-v1" {
		t.Errorf("exports = %+v", exports)
	}

	phrase, err := c.Ping(ctx)
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if phrase != protocol.Phrase {
		t.Errorf("Ping = %q", phrase)
	}
}

func TestNew_DefaultSocket(t *testing.T) {
	if got := New("").SocketPath(); got != protocol.DefaultSocketPath {
		t.Errorf("SocketPath = %q", got)
	}
}
