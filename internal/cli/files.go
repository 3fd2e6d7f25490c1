package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"orgls/internal/command"
	"orgls/internal/edit"
	"orgls/internal/env"
	"orgls/internal/index"
	"orgls/internal/manager"
	"orgls/internal/scanner"

	"github.com/spf13/cobra"
)

// ErrFailed is returned when a command failed for at least one file.
var ErrFailed = fmt.Errorf("command failed")

// dispatcher returns a dispatcher over a fresh store. Edits are written
// to disk unless --dry-run is set, in which case they are printed.
func (a *app) dispatcher(ix *index.Index) *command.Dispatcher {
	documents := manager.NewDocumentManager()
	documents.SetDefaultConfig(a.config.ParseConfig())

	storage := env.FileStorage{}
	var applier edit.Applier = edit.NewBufferApplier(storage, documents)
	if a.dryRun {
		preview := edit.NewDryRunApplier(storage, a.stdout, nil)
		if a.diff {
			preview = preview.WithDiff()
		}
		applier = preview
	}

	format := a.config.FormatOptions()
	c := &command.Context{
		Documents: documents,
		Env: env.Env{
			Storage:   storage,
			Process:   env.ExecProcess{},
			Messaging: env.LogMessenger{Out: a.stderr},
		},
		Edits:  edit.NewEngine(applier),
		Now:    time.Now,
		Format: &format,
	}
	if ix != nil {
		c.Index = ix
	}
	return command.NewDispatcher(command.NewRegistry(), c)
}

func (a *app) addEditFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&a.dryRun, "dry-run", false, "print the edits instead of writing them")
	cmd.Flags().BoolVar(&a.diff, "diff", false, "with --dry-run, print unified diffs")
}

// fileCommand runs the command called name once for every org file named
// by the arguments. Directories are scanned for org files.
func (a *app) fileCommand(use, short, name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <path>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFiles(cmd.Context(), name, args)
		},
	}
	a.addEditFlags(cmd)
	return cmd
}

func (a *app) runFiles(ctx context.Context, name string, args []string) error {
	files, err := scanner.Files(ctx, args)
	if err != nil {
		return err
	}
	d := a.dispatcher(nil)

	failed := 0
	for _, path := range files {
		if err := a.runFile(ctx, d, name, path); err != nil {
			log.Errorf("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrFailed, failed, len(files))
	}
	return nil
}

func (a *app) runFile(ctx context.Context, d *command.Dispatcher, name, path string) error {
	loc, err := env.FileLocation(path)
	if err != nil {
		return err
	}
	if !d.Context.Load(ctx, loc) {
		return fmt.Errorf("%w: %s", env.ErrNotFound, path)
	}
	raw, err := json.Marshal(map[string]any{"url": loc})
	if err != nil {
		return err
	}
	_, err = d.Run(ctx, name, raw)
	return err
}

// commandCommand runs any registered command with a JSON argument and
// prints its JSON result.
func (a *app) commandCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command <name> [argument]",
		Short: "Run a command with a JSON argument, read from stdin when it is -",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if len(args) == 2 {
				arg := args[1]
				if arg == "-" {
					data, err := io.ReadAll(a.stdin)
					if err != nil {
						return err
					}
					arg = string(data)
				}
				raw = json.RawMessage(strings.TrimSpace(arg))
			}
			return a.runCommand(cmd.Context(), args[0], raw)
		},
	}
	a.addEditFlags(cmd)
	return cmd
}

func (a *app) runCommand(ctx context.Context, name string, raw json.RawMessage) error {
	ix, err := a.openIndex()
	if err != nil {
		return err
	}
	if ix != nil {
		defer ix.Close()
	}

	d := a.dispatcher(ix)
	if loc, ok := command.Target(raw); ok {
		d.Context.Load(ctx, loc)
	}
	result, err := d.Run(ctx, name, raw)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
