package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/registry"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <programs-dir>",
		Short: "Re-validate programs whenever they change",
		Long: `Watch a CUE program directory and re-validate the catalogue on every
change.

Each reload compiles the directory and builds every program's activation
graph, reporting compile and validation errors as they appear. A reload
with any broken program leaves the previous catalogue in place. Stop with Ctrl-C.

Example:
  axis watch ./programs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runWatch(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.logger()

	debounce, err := opts.config().DebounceDuration()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	w := cmd.OutOrStdout()
	var reg *registry.Registry
	reg = registry.New(
		registry.WithLogger(logger),
		registry.WithDebounce(debounce),
		registry.WithReloadHook(func(slugs []string, err error) {
			reportCatalogue(w, reg, slugs, err)
		}),
	)

	if err := reg.LoadDir(dir); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}
	reportCatalogue(w, reg, reg.Slugs(), nil)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(w, "Watching %s. Press Ctrl-C to stop.\n", dir)
	if err := reg.Watch(ctx, dir); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// reportCatalogue prints the outcome of one catalogue load. A failed
// reload lists each compile or validation error; the registry keeps the
// previous catalogue.
func reportCatalogue(w io.Writer, reg *registry.Registry, slugs []string, err error) {
	if err == nil {
		fmt.Fprintf(w, "✓ %d program(s) valid: %s\n", len(slugs), strings.Join(slugs, ", "))
		return
	}

	var loadErr *registry.LoadError
	if !errors.As(err, &loadErr) {
		fmt.Fprintf(w, "✗ %v\n", err)
	} else {
		for _, e := range loadErr.Errors {
			var cfgErr *engine.ConfigError
			if errors.As(e, &cfgErr) {
				for _, ve := range cfgErr.Errors {
					fmt.Fprintf(w, "✗ %s: %s\n", cfgErr.Program, ve.Error())
				}
				continue
			}
			fmt.Fprintf(w, "✗ %v\n", e)
		}
	}
	fmt.Fprintf(w, "✗ reload failed, keeping previous catalogue of %d program(s)\n", reg.Len())
}
