// Package cli implements the orgls command line: the language server, the
// HTTP API and one-shot commands over org files.
package cli

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"orgls/internal/api"
	"orgls/internal/config"
	"orgls/internal/index"
	"orgls/internal/server"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.cli")

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

// app holds the state shared by the subcommands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logFile    string
	verbosity  int
	dryRun     bool
	diff       bool

	config  config.Config
	logging io.Closer
}

// Execute runs the command line with args and returns the first error.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orgls",
		Short:         "Language server and tools for org-mode documents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path of a yaml, toml or json config file")
	flags.StringVar(&a.logFile, "logfile", "", "path to log file")
	flags.IntVar(&a.verbosity, "verbosity", 1, "log verbosity (0-5)")

	root.AddCommand(
		a.lspCommand(),
		a.apiCommand(),
		a.fileCommand("fmt", "Format org files", "document-format"),
		a.fileCommand("tangle", "Tangle the source blocks of org files", "src-block-tangle-all"),
		a.fileCommand("detangle", "Copy tangled files back into their source blocks", "src-block-detangle-all"),
		a.fileCommand("execute-src-block", "Execute the source blocks of org files and insert their results", "src-block-execute-all"),
		a.commandCommand(),
	)
	return root
}

// setup loads the configuration and configures logging. Flags given on
// the command line win over the config file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("logfile") {
		cfg.LogFile = a.logFile
	}
	if flags.Changed("verbosity") {
		cfg.Verbosity = a.verbosity
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.config = cfg
	return a.configureLogging()
}

func (a *app) configureLogging() error {
	var path *string
	out := a.stderr
	if a.config.LogFile != "" {
		f, err := os.OpenFile(a.config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logging = f
		path = &a.config.LogFile
		out = io.MultiWriter(a.stderr, f)
	}
	commonlog.Configure(a.config.Verbosity, path)

	stdlog.SetOutput(out)
	stdlog.SetFlags(stdlog.Ldate | stdlog.Ltime | stdlog.Lshortfile)
	return nil
}

func (a *app) close() {
	if a.logging != nil {
		a.logging.Close()
	}
}

// openIndex opens the configured headline index, or returns nil.
func (a *app) openIndex() (*index.Index, error) {
	if a.config.Index == "" {
		return nil, nil
	}
	ix, err := index.Open(a.config.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", a.config.Index, err)
	}
	return ix, nil
}

func (a *app) lspCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run the language server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.openIndex()
			if err != nil {
				return err
			}
			if ix != nil {
				defer ix.Close()
			}

			stdlog.Println("Starting orgls language server...")
			server.Version = Version
			s := server.New(server.Options{Config: a.config, Index: ix})
			defer s.Close()
			return s.RunStdio()
		},
	}
}

func (a *app) apiCommand() *cobra.Command {
	var addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Serve commands over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.config.Addr = addr
			}
			ix, err := a.openIndex()
			if err != nil {
				return err
			}
			if ix != nil {
				defer ix.Close()
			}

			s, err := api.New(api.Options{Config: a.config, Index: ix, Watch: watch})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			stdlog.Printf("Starting orgls api on %s...", a.config.Addr)
			return s.ListenAndServe(ctx, a.config.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload documents changed on disk")
	return cmd
}
