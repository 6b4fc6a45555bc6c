package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ProgramsOptions holds flags for the programs command.
type ProgramsOptions struct {
	*RootOptions
	Programs string
}

// ProgramSummary describes one program in the catalogue.
type ProgramSummary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Instruments int    `json:"instruments"`
	Conditions  int    `json:"conditions"`
	Hash        string `json:"hash"`
}

// NewProgramsCommand creates the programs command.
func NewProgramsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgramsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List the program catalogue",
		Long: `List the programs available for evaluation.

Without --programs the catalogue comes from programs.dir in the config
file, or the catalogue built into axis when that is empty.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrograms(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Programs, "programs", "", "CUE programs directory (default: config or built-in catalogue)")

	return cmd
}

func runPrograms(opts *ProgramsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	dir := programsDir(opts.RootOptions, opts.Programs)
	reg, err := openRegistry(dir, opts.logger())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
	}

	summaries := make([]ProgramSummary, 0, reg.Len())
	for _, slug := range reg.Slugs() {
		prog, err := reg.Program(slug)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
		}
		summaries = append(summaries, ProgramSummary{
			Slug:        slug,
			Name:        prog.Spec.Name,
			Instruments: len(prog.Spec.Instruments),
			Conditions:  len(prog.Spec.Conditions),
			Hash:        prog.Hash,
		})
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No programs found.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tINSTRUMENTS\tCONDITIONS")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Slug, s.Name, s.Instruments, s.Conditions)
	}
	return tw.Flush()
}

// programsDir resolves the catalogue directory: the flag wins over the
// config file. Empty means the built-in catalogue.
func programsDir(opts *RootOptions, flag string) string {
	if flag != "" {
		return flag
	}
	return opts.config().Programs.Dir
}
