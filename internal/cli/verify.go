package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/checklist"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database     string
	Programs     string
	Program      string // optional - one checklist only
	EvaluationID string // optional - one evaluation only
}

// VerifyChecklistResult holds the verification of one checklist's log.
type VerifyChecklistResult struct {
	SubjectID     string                   `json:"subject_id"`
	Program       string                   `json:"program"`
	Evaluations   []checklist.Verification `json:"evaluations"`
	Deterministic bool                     `json:"deterministic"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Checklists       []VerifyChecklistResult `json:"checklists"`
	TotalEvaluations int                     `json:"total_evaluations"`
	AllDeterministic bool                    `json:"all_deterministic"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [subject-id]",
		Short: "Re-run stored evaluations and check they reproduce",
		Long: `Re-run recorded evaluations against the answer log and compare.

Each stored evaluation is recomputed from the answers as they stood at its
seq. The recomputed active set and answers hash must match what was stored.
A changed program hash is reported but is not a failure on its own: a
program edit that does not change the checklist is harmless.

Without a subject id every checklist in the database is verified.

Exit codes:
  0 - All evaluations reproduce
  1 - At least one evaluation no longer reproduces
  2 - Command error (database not found, etc.)

Examples:
  axis verify --db axis.db
  axis verify home-1 --db axis.db --program eto-2024
  axis verify --db axis.db --id 0192f3a4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID := ""
			if len(args) == 1 {
				subjectID = args[0]
			}
			return runVerify(opts, subjectID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config store.path)")
	cmd.Flags().StringVar(&opts.Programs, "programs", "", "CUE programs directory (default: config or built-in catalogue)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "verify one program only")
	cmd.Flags().StringVar(&opts.EvaluationID, "id", "", "verify one evaluation only")

	return cmd
}

func runVerify(opts *VerifyOptions, subjectID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	svc, st, err := newService(ctx, opts.RootOptions, opts.Programs, dbPath(opts.RootOptions, opts.Database), false)
	if err != nil {
		return setupError(formatter, err)
	}
	defer st.Close()

	result := VerifyResult{
		Checklists:       []VerifyChecklistResult{},
		AllDeterministic: true,
	}

	if opts.EvaluationID != "" {
		v, err := svc.Verify(ctx, opts.EvaluationID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		result.add(VerifyChecklistResult{
			SubjectID:   v.Evaluation.SubjectID,
			Program:     v.Evaluation.Program,
			Evaluations: []checklist.Verification{*v},
		})
		return outputVerify(formatter, result)
	}

	checklists, err := st.ListChecklists(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	for _, c := range checklists {
		if subjectID != "" && c.SubjectID != subjectID {
			continue
		}
		if opts.Program != "" && c.Program != opts.Program {
			continue
		}

		vs, err := svc.VerifyChecklist(ctx, c.SubjectID, c.Program)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore,
				fmt.Sprintf("failed to verify %s / %s: %v", c.SubjectID, c.Program, err), nil)
		}
		if len(vs) == 0 {
			continue
		}
		result.add(VerifyChecklistResult{
			SubjectID:   c.SubjectID,
			Program:     c.Program,
			Evaluations: vs,
		})
	}

	return outputVerify(formatter, result)
}

func (r *VerifyResult) add(c VerifyChecklistResult) {
	c.Deterministic = true
	for _, v := range c.Evaluations {
		if !v.OK() {
			c.Deterministic = false
		}
	}
	if !c.Deterministic {
		r.AllDeterministic = false
	}
	r.TotalEvaluations += len(c.Evaluations)
	r.Checklists = append(r.Checklists, c)
}

func outputVerify(formatter *OutputFormatter, result VerifyResult) error {
	driftErr := NewExitError(ExitFailure, "evaluation verification failed")

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.AllDeterministic {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeDrift,
				Message: "evaluation verification failed",
			}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
		if !result.AllDeterministic {
			return driftErr
		}
		return nil
	}

	w := formatter.Writer
	if len(result.Checklists) == 0 {
		fmt.Fprintln(w, "No evaluations found in database.")
		return nil
	}

	fmt.Fprintf(w, "Verify Summary: %d evaluation(s) in %d checklist(s)\n\n", result.TotalEvaluations, len(result.Checklists))

	for _, c := range result.Checklists {
		status := "✓"
		if !c.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s / %s\n", status, c.SubjectID, c.Program)

		for _, v := range c.Evaluations {
			if v.OK() && !formatter.Verbose {
				continue
			}
			mark := "✓"
			if !v.OK() {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s [%d] %s\n", mark, v.Evaluation.Seq, v.Evaluation.ID)
			if !v.AnswersHashMatch {
				fmt.Fprintln(w, "      answers hash differs")
			}
			if v.Diff != "" {
				fmt.Fprintf(w, "      active set differs (-stored +recomputed):\n%s", v.Diff)
			}
			if !v.ProgramHashMatch {
				fmt.Fprintln(w, "      program changed since evaluation")
			}
			if v.SubjectChanged {
				fmt.Fprintln(w, "      subject document replaced since evaluation")
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All evaluations reproduce")
		return nil
	}

	fmt.Fprintln(w, "✗ Evaluation verification failed")
	return driftErr
}
