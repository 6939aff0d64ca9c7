// Command wasmshipd is the wasmship daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasmship/wasmship"
	"github.com/wasmship/wasmship/config"
	"github.com/wasmship/wasmship/daemon"
	"github.com/wasmship/wasmship/engine"
	"github.com/wasmship/wasmship/integrity"
	"github.com/wasmship/wasmship/protocol"
	"github.com/wasmship/wasmship/registry"
	"github.com/wasmship/wasmship/runtime"
)

const stopTimeout = 15 * time.Second

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(wasmship.VersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "wasmshipd",
		Short: "Serve verified WebAssembly modules over a Unix socket",
		Long: `wasmshipd loads the module registry, verifies every module against its
content address and answers wasmship client commands on a Unix socket.

Configuration is read from wasmship.yaml (in /etc/wasmship or
~/.config/wasmship), WASMSHIP_* environment variables and flags, in
increasing order of precedence.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{
				ConfigFilePath: cfgFile,
				Flags:          cmd.Flags(),
			})
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default searches /etc/wasmship and ~/.config/wasmship)")
	f.String("socket", protocol.DefaultSocketPath, "Unix socket to listen on")
	f.String("registry", defaults.Registry.Root, "registry root holding repositories.json")
	f.String("link-mode", defaults.Registry.LinkMode, "link validation: lenient or strict")
	f.String("runtime", defaults.Runtime.Kind, "execution backend")
	f.Duration("timeout", defaults.Runtime.Timeout, "per-invocation timeout (0 disables)")
	f.Uint32("memory-limit-pages", 0, "linear memory cap per instance in 64KiB pages (0 = engine default)")
	f.Int("max-concurrent", 0, "concurrent invocations (0 = number of CPUs)")
	f.Bool("verify-on-run", false, "re-hash module binaries before every run")
	f.String("log-level", defaults.Log.Level, "log level: debug, info, warn, error")
	f.String("log-format", defaults.Log.Format, "log format: json or console")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	integrity.SetLogger(logger.Named("integrity"))
	registry.SetLogger(logger.Named("registry"))
	runtime.SetLogger(logger.Named("runtime"))
	engine.SetLogger(logger.Named("engine"))
	daemon.SetLogger(logger.Named("daemon"))

	reg, err := registry.Load(cfg.Registry.Root, registry.WithLinkMode(cfg.LinkMode()))
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	srv, err := daemon.New(daemon.Options{
		SocketPath:  cfg.SocketPath,
		RuntimeKind: runtime.Kind(cfg.Runtime.Kind),
		Runtime: runtime.Config{
			MemoryLimitPages: cfg.Runtime.MemoryLimitPages,
			Timeout:          cfg.Runtime.Timeout,
		},
		MaxConcurrent: cfg.Runtime.MaxConcurrent,
		VerifyOnRun:   cfg.Daemon.VerifyOnRun,
	}, reg)
	if err != nil {
		return err
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", zap.String("reason", context.Cause(ctx).Error()))
	case serveErr = <-srv.Err():
		logger.Error("daemon stopped unexpectedly", zap.Error(serveErr))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	return serveErr
}
