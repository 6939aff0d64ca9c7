package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wasmship/wasmship/client"
	"github.com/wasmship/wasmship/protocol"
)

// socketEnv overrides the default socket when --socket is not given.
const socketEnv = "WASMSHIP_SOCKET_PATH"

// entryPlaceholder in the function position selects the module's entry point.
const entryPlaceholder = "-"

type globalOptions struct {
	socket  string
	timeout time.Duration
}

func (o *globalOptions) client() *client.Client {
	path := o.socket
	if path == "" {
		path = os.Getenv(socketEnv)
	}
	var opts []client.Option
	if o.timeout > 0 {
		opts = append(opts, client.WithTimeout(o.timeout))
	}
	return client.New(path, opts...)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var runRef, listTarget string

	cmd := &cobra.Command{
		Use:   "wasmship",
		Short: "Run verified WebAssembly modules through the wasmship daemon",
		Long: `wasmship sends commands to a running wasmshipd over its Unix socket.

Modules are addressed as name[:tag]; the tag defaults to "latest".`,
		Example: `  wasmship run mymod add 300 206
  wasmship run mymod:v1
  wasmship inspect mymod -o yaml
  wasmship --run mymod`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case runRef != "":
				return runModule(cmd, opts, runRef, "", nil)
			case cmd.Flags().Changed("list"):
				return forward(cmd, opts, protocol.CommandList, listTarget)
			default:
				return cmd.Help()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.socket, "socket", "", fmt.Sprintf("daemon socket (env %s, default %s)", socketEnv, protocol.DefaultSocketPath))
	pf.DurationVar(&opts.timeout, "timeout", 0, "client-side request timeout (0 waits for the daemon)")

	cmd.Flags().StringVar(&runRef, "run", "", "run MODULE's entry point")
	cmd.Flags().StringVar(&listTarget, "list", "", "list MODULE or INSTANCE")
	cmd.MarkFlagsMutuallyExclusive("run", "list")

	cmd.AddCommand(
		newRunCmd(opts),
		newInspectCmd(opts),
		newForwardCmd(opts, protocol.CommandList, "list [MODULE|INSTANCE]", "List modules or instances", cobra.MaximumNArgs(1)),
		newForwardCmd(opts, protocol.CommandPull, "pull MODULE", "Pull a module into the registry", cobra.ExactArgs(1)),
		newForwardCmd(opts, protocol.CommandPush, "push MODULE", "Push a module from the registry", cobra.ExactArgs(1)),
		newPingCmd(opts),
	)
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "run MODULE [FUNCTION|-] [ARGS...]",
		Short: "Invoke a module function",
		Long: `Invoke FUNCTION of MODULE with decimal ARGS and print one result per line.

Without FUNCTION, or with "-", the module's entry point is used: the
descriptor's entry, then _start, run or main, then the sole export.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				if !term.IsTerminal(int(os.Stdout.Fd())) {
					return fmt.Errorf("interactive mode needs a terminal")
				}
				ref, err := protocol.ParseReference(args[0])
				if err != nil {
					return err
				}
				return runInteractive(cmd.Context(), opts.client(), ref)
			}

			function := ""
			var params []string
			if len(args) > 1 {
				function = args[1]
				params = args[2:]
			}
			if function == entryPlaceholder {
				function = ""
			}
			return runModule(cmd, opts, args[0], function, params)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a function and arguments in a TUI")
	return cmd
}

func runModule(cmd *cobra.Command, opts *globalOptions, module, function string, params []string) error {
	return opts.client().Run(cmd.Context(), protocol.Command{
		Command:  protocol.CommandRun,
		Module:   module,
		Function: function,
		Args:     params,
	}, cmd.OutOrStdout())
}

func newForwardCmd(opts *globalOptions, kind protocol.CommandKind, use, short string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return forward(cmd, opts, kind, target)
		},
	}
}

func forward(cmd *cobra.Command, opts *globalOptions, kind protocol.CommandKind, target string) error {
	return opts.client().Run(cmd.Context(), protocol.Command{Command: kind, Module: target}, cmd.OutOrStdout())
}

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect MODULE",
		Short: "Show the function exports of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := protocol.ParseReference(args[0])
			if err != nil {
				return err
			}
			exports, err := opts.client().Exports(cmd.Context(), ref)
			if err != nil {
				return err
			}
			return renderExports(cmd.OutOrStdout(), ref, exports, format)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func newPingCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is answering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			phrase, err := opts.client().Ping(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), phrase)
			return err
		},
	}
}
