package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wasmship/wasmship/errors"
	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/registry"
	"github.com/wasmship/wasmship/runtime"
)

// Options holds immutable daemon configuration.
type Options struct {
	// SocketPath is the Unix socket to listen on.
	SocketPath string
	// RuntimeKind selects the backend. Empty means wazero.
	RuntimeKind runtime.Kind
	// Runtime is passed to every backend.
	Runtime runtime.Config
	// MaxConcurrent bounds simultaneous invocations. 0 means NumCPU.
	MaxConcurrent int
	// VerifyOnRun re-hashes a module's binary before each run.
	VerifyOnRun bool
	// ShutdownTimeout bounds graceful shutdown in Stop.
	ShutdownTimeout time.Duration
}

// DefaultOptions returns the options used when fields are left zero.
func DefaultOptions() Options {
	return Options{
		SocketPath:      protocol.DefaultSocketPath,
		RuntimeKind:     runtime.KindWazero,
		Runtime:         runtime.Config{Timeout: 30 * time.Second},
		MaxConcurrent:   goruntime.NumCPU(),
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves the control protocol over a Unix socket.
// A Server instance is single-use: once stopped or failed, create a new one.
type Server struct {
	opts     Options
	registry *registry.Registry
	cache    *runtime.Cache
	sem      *semaphore.Weighted
	log      *zap.Logger

	state atomic.Int32

	stateMu    sync.Mutex
	httpServer *http.Server
	listener   net.Listener

	wg        sync.WaitGroup
	startedCh chan struct{}
	errCh     chan error
	lastErr   error
}

// New creates a daemon for reg. It fails with an unsupported error when
// no backend is registered for opts.RuntimeKind. The socket is not bound
// until Start.
func New(opts Options, reg *registry.Registry) (*Server, error) {
	if reg == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "daemon requires a registry")
	}

	defaults := DefaultOptions()
	if opts.SocketPath == "" {
		opts.SocketPath = defaults.SocketPath
	}
	if opts.RuntimeKind == "" {
		opts.RuntimeKind = defaults.RuntimeKind
	}
	if err := runtime.CheckKind(opts.RuntimeKind); err != nil {
		return nil, err
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaults.MaxConcurrent
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaults.ShutdownTimeout
	}

	s := &Server{
		opts:      opts,
		registry:  reg,
		cache:     runtime.NewCache(opts.RuntimeKind, opts.Runtime),
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		log:       Logger().With(zap.String("socket", opts.SocketPath)),
		startedCh: make(chan struct{}),
		errCh:     make(chan error, 1),
	}
	s.state.Store(int32(StateCreated))
	return s, nil
}

// Start removes a stale socket, binds a fresh listener and begins serving.
// It returns once the server accepts connections. A bind failure moves the
// server to StateFailed and is returned.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", s.State())
	}

	select {
	case <-ctx.Done():
		err := fmt.Errorf("context cancelled before start: %w", ctx.Err())
		s.transitionToFailed(err)
		return err
	default:
	}

	path := s.opts.SocketPath
	if err := removeStaleSocket(path); err != nil {
		s.transitionToFailed(err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		err = errors.IO(errors.PhaseDispatch, "create socket directory", err)
		s.transitionToFailed(err)
		return err
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		err = errors.IO(errors.PhaseDispatch, "listen on "+path, err)
		s.transitionToFailed(err)
		return err
	}

	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}
	srv.SetKeepAlivesEnabled(false)

	// Stop reads httpServer under stateMu, so either it sees srv and shuts
	// it down, or Start sees the Stopping state and never serves.
	s.stateMu.Lock()
	if s.State() != StateStarting {
		s.stateMu.Unlock()
		_ = listener.Close()
		return fmt.Errorf("server stopped during start")
	}
	s.listener = listener
	s.httpServer = srv
	s.wg.Add(1)
	go s.serve(srv, listener)
	s.stateMu.Unlock()

	if !s.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		return fmt.Errorf("server stopped during start")
	}
	close(s.startedCh)

	s.log.Info("daemon listening",
		zap.Int("repositories", s.registry.Len()),
		zap.String("runtime", string(s.opts.RuntimeKind)),
		zap.Int("max_concurrent", s.opts.MaxConcurrent))
	return nil
}

func (s *Server) serve(srv *http.Server, listener net.Listener) {
	defer s.wg.Done()

	if err := srv.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		s.log.Error("serve failed", zap.Error(err))
		select {
		case s.errCh <- err:
		default:
		}
	}
}

// Stop gracefully shuts the server down and removes its socket.
// Safe to call multiple times; subsequent calls are no-ops.
func (s *Server) Stop(ctx context.Context) error {
	for {
		current := s.State()
		switch current {
		case StateStopped, StateFailed:
			return nil
		case StateCreated:
			if s.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return s.cache.Close(ctx)
			}
			continue
		case StateStopping:
			s.wg.Wait()
			return nil
		case StateStarting, StateRunning:
			if !s.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
			return s.doStop(ctx)
		default:
			return fmt.Errorf("unknown server state: %d", current)
		}
	}
}

func (s *Server) doStop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	s.stateMu.Lock()
	srv := s.httpServer
	s.stateMu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown: %w", err))
		}
	}
	s.wg.Wait()

	if err := s.cache.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close runtimes: %w", err))
	}
	if err := os.Remove(s.opts.SocketPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove socket: %w", err))
	}

	s.state.Store(int32(StateStopped))
	s.log.Info("daemon stopped")
	return stderrors.Join(errs...)
}

// transitionToFailed records err and fails a server that is still starting.
// A concurrent Stop keeps its own transition.
func (s *Server) transitionToFailed(err error) {
	s.stateMu.Lock()
	s.lastErr = err
	s.stateMu.Unlock()
	s.state.CompareAndSwap(int32(StateStarting), int32(StateFailed))
	s.log.Error("daemon failed", zap.Error(err))
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning reports whether the server accepts connections.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// WaitForReady blocks until the server is running or ctx is done.
func (s *Server) WaitForReady(ctx context.Context) error {
	select {
	case <-s.startedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err receives fatal errors from the serve loop after Start returned.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// LastError returns the error that moved the server to StateFailed.
func (s *Server) LastError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastErr
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.opts.SocketPath
}

// removeStaleSocket deletes a leftover socket file. Anything else at path is
// left alone and reported.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.IO(errors.PhaseDispatch, "stat "+path, err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Path(path).
			Detail("refusing to replace %s, not a socket", fi.Mode().Type()).
			Build()
	}
	if err := os.Remove(path); err != nil {
		return errors.IO(errors.PhaseDispatch, "remove stale socket "+path, err)
	}
	Logger().Info("removed stale socket", zap.String("socket", path))
	return nil
}
