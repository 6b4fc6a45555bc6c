package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/checklist"
	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
)

// AnswerOptions holds flags for the answer command.
type AnswerOptions struct {
	*RootOptions
	Database   string
	Programs   string
	RecordedBy string
	JSONValue  bool
}

// AnswerResult is the output of the answer command.
type AnswerResult struct {
	Answer  ir.Answer `json:"answer"`
	Active  []string  `json:"active"`
	Pending int       `json:"pending"`
}

// NewAnswerCommand creates the answer command.
func NewAnswerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnswerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "answer <program> <subject-id> <measure> <value>",
		Short: "Record an answer to a checklist question",
		Long: `Record one answer for a subject.

The question must exist in the program and be active given the answers
already recorded. The value is parsed against the question's type: whole
numbers for integer questions, one of the suggested responses for
multiple-choice questions. With --json the value is a JSON literal, which
allows several selections at once.

The answer is appended to the log; earlier answers to the same question
are kept as history.

Examples:
  axis answer eto-2024 home-1 primary-heating-equipment-type "Gas Furnace" --db axis.db
  axis answer eto-2024 home-1 heat-pump-lockout-temperature 25 --db axis.db
  axis answer eto-2024 home-1 electric-elements '["Solar", "Storage"]' --json --db axis.db`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnswer(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config store.path)")
	cmd.Flags().StringVar(&opts.Programs, "programs", "", "CUE programs directory (default: config or built-in catalogue)")
	cmd.Flags().StringVar(&opts.RecordedBy, "by", recordedBy, "who recorded the answer")
	cmd.Flags().BoolVar(&opts.JSONValue, "json", false, "parse the value as a JSON literal")

	return cmd
}

func runAnswer(opts *AnswerOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)
	program, subjectID, measureID, raw := args[0], args[1], args[2], args[3]

	svc, st, err := newService(ctx, opts.RootOptions, opts.Programs, dbPath(opts.RootOptions, opts.Database), true)
	if err != nil {
		return setupError(formatter, err)
	}
	defer st.Close()

	if _, err := svc.Programs().Program(program); err != nil {
		return programError(formatter, program, err)
	}

	req := checklist.AnswerRequest{
		SubjectID:  subjectID,
		Program:    program,
		MeasureID:  measureID,
		Text:       raw,
		RecordedBy: opts.RecordedBy,
	}
	if opts.JSONValue {
		v, err := ir.UnmarshalIRValue([]byte(raw))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeAnswer, fmt.Sprintf("invalid JSON value: %v", err), nil)
		}
		req.Value = v
	}

	a, err := svc.Answer(ctx, req)
	if err != nil {
		if engine.IsAnswerError(err) {
			return formatter.Fail(ExitCommandError, ErrCodeAnswer, err.Error(), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	res, err := svc.Evaluate(ctx, subjectID, program, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	result := AnswerResult{
		Answer:  a,
		Active:  []string(res.Activation.Active),
		Pending: len(res.Activation.Pending()),
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Recorded %s = %s (seq %d)\n", a.MeasureID, ir.Display(a.Value), a.Seq)
	fmt.Fprintf(formatter.Writer, "%d active, %d pending\n", len(result.Active), result.Pending)
	return nil
}
