package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/registry"
	"github.com/wasmship/wasmship/runtime"
)

// maxCommandSize bounds a command body.
const maxCommandSize = 1 << 20

type ctxKey struct{}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+protocol.RouteCommands, s.handleCommand)
	mux.HandleFunc("GET "+protocol.RouteExports, s.handleExports)
	mux.HandleFunc("GET "+protocol.RoutePing, s.handlePing)
	return s.withRequestLog(mux)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		log := s.log.With(zap.String("request_id", id))
		w.Header().Set(protocol.HeaderRequestID, id)

		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, log)))

		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func requestLogger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return Logger()
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, protocol.Phrase)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd protocol.Command
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandSize))
	if err := dec.Decode(&cmd); err != nil {
		writeError(w, r, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Detail("invalid command").
			Cause(err).
			Build())
		return
	}
	if err := cmd.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	switch cmd.Command {
	case protocol.CommandRun:
		s.handleRun(w, r, cmd)
	default:
		writeError(w, r, errors.Unsupported(errors.PhaseDispatch, fmt.Sprintf("command %s is not implemented", cmd.Command)))
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, cmd protocol.Command) {
	ctx := r.Context()
	log := requestLogger(ctx)

	ref, err := protocol.ParseReference(cmd.Module)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mod, err := s.lookup(ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log = log.With(zap.String("module", ref.String()), zap.String("hash", mod.Hash()))

	var results []runtime.Value
	err = s.execute(ctx, func(ctx context.Context) error {
		if s.opts.VerifyOnRun {
			if err := mod.Verify(); err != nil {
				return err
			}
		}
		rt, err := s.cache.Get(ctx, mod)
		if err != nil {
			return err
		}
		results, err = rt.Invoke(ctx, cmd.Function, cmd.Args)
		return err
	})
	if err != nil {
		log.Warn("run failed", zap.String("function", cmd.Function), zap.Error(err))
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	for _, v := range results {
		if _, err := io.WriteString(w, v.String()+"\n"); err != nil {
			log.Debug("client went away", zap.Error(err))
			return
		}
		_ = rc.Flush()
	}
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	ref := protocol.Reference{Name: r.PathValue("name"), Tag: r.PathValue("tag")}
	mod, err := s.lookup(ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var exports runtime.FunctionExports
	err = s.execute(r.Context(), func(ctx context.Context) error {
		rt, err := s.cache.Get(ctx, mod)
		if err != nil {
			return err
		}
		exports, err = rt.Exports(ctx)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ExportsToWire(exports)); err != nil {
		requestLogger(r.Context()).Debug("encode exports", zap.Error(err))
	}
}

func (s *Server) lookup(ref protocol.Reference) (*registry.Module, error) {
	mod, ok := s.registry.GetModule(ref.Name, ref.Tag)
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "module "+ref.String(), "")
	}
	return mod, nil
}

// execute runs fn on its own goroutine once an executor slot is free, so
// request goroutines only ever wait on WASM work.
func (s *Server) execute(ctx context.Context, fn func(context.Context) error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return errors.ExecutionCause(errors.PhaseDispatch, "waiting for executor", err)
	}

	done := make(chan error, 1)
	go func() {
		defer s.sem.Release(1)
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.ExecutionCause(errors.PhaseDispatch, "request cancelled", ctx.Err())
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	if kind == "" {
		kind = errors.KindIO
	}
	w.Header().Set(protocol.HeaderErrorKind, string(kind))
	http.Error(w, err.Error(), protocol.StatusFor(kind))
	requestLogger(r.Context()).Debug("error response", zap.String("kind", string(kind)), zap.Error(err))
}

// ExportsToWire converts a runtime export table to its JSON form, sorted by
// name.
func ExportsToWire(exports runtime.FunctionExports) []protocol.Export {
	out := make([]protocol.Export, 0, len(exports))
	for _, fn := range exports.Sorted() {
		e := protocol.Export{
			Name:    fn.Name,
			Params:  make([]string, len(fn.Params)),
			Results: make([]string, len(fn.Results)),
		}
		for i, t := range fn.Params {
			e.Params[i] = t.String()
		}
		for i, t := range fn.Results {
			e.Results[i] = t.String()
		}
		out = append(out, e)
	}
	return out
}
