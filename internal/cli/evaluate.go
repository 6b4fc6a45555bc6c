package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/checklist"
	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// recordedBy marks answers imported from the command line.
const recordedBy = "cli"

// defaultSubjectID names the subject of a throwaway evaluation.
const defaultSubjectID = "subject"

// EvaluateOptions holds flags for the evaluate command.
type EvaluateOptions struct {
	*RootOptions
	Subject   string // subject document file
	SubjectID string
	Answers   string // answers file
	Database  string
	Programs  string
	Record    bool
}

// PendingQuestion is an active instrument still waiting for an answer.
type PendingQuestion struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Type      string   `json:"type"`
	Section   string   `json:"section,omitempty"`
	Optional  bool     `json:"optional,omitempty"`
	Responses []string `json:"responses,omitempty"`
}

// EvaluationReport is the output of the evaluate command.
type EvaluationReport struct {
	Program      string            `json:"program"`
	ProgramHash  string            `json:"program_hash"`
	SubjectID    string            `json:"subject_id"`
	Active       []string          `json:"active"`
	Pending      []PendingQuestion `json:"pending"`
	Progress     engine.Progress   `json:"progress"`
	Complete     bool              `json:"complete"`
	Sweeps       int               `json:"sweeps"`
	Converged    bool              `json:"converged"`
	Trace        []engine.Step     `json:"trace"`
	AnswersHash  string            `json:"answers_hash"`
	EvaluationID string            `json:"evaluation_id,omitempty"`
	Seq          int64             `json:"seq,omitempty"`
	Warning      string            `json:"warning,omitempty"`

	answers subject.Answers
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "evaluate <program>",
		Short: "Show which checklist questions apply to a home",
		Long: `Evaluate a program's checklist for one subject (home).

Without --db the evaluation runs against a throwaway store: the subject
document and answers come from --subject and --answers, and nothing is
kept. With --db the stored subject and answers are used; --subject and
--answers are written to the store first, and --record logs the
evaluation so it can be verified later.

Subject documents and answer files are YAML or JSON mappings. Answers map
measure ids to values.

Examples:
  axis evaluate eto-2024 --subject home.yaml --answers answers.yaml
  axis evaluate eto-2024 --db axis.db --subject-id home-1 --record
  axis evaluate eto-2024 --db axis.db --subject-id home-1 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject document (YAML or JSON)")
	cmd.Flags().StringVar(&opts.SubjectID, "subject-id", "", "subject id (required with --db)")
	cmd.Flags().StringVar(&opts.Answers, "answers", "", "answers file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: throwaway store)")
	cmd.Flags().StringVar(&opts.Programs, "programs", "", "CUE programs directory (default: config or built-in catalogue)")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record the evaluation in the database")

	return cmd
}

func runEvaluate(opts *EvaluateOptions, program string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	path := ":memory:"
	subjectID := opts.SubjectID
	if opts.Database != "" {
		path = opts.Database
		if subjectID == "" {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--subject-id is required with --db", nil)
		}
	} else if subjectID == "" {
		subjectID = defaultSubjectID
	}
	if opts.Record && opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--record requires --db", nil)
	}

	writes := opts.Subject != "" || opts.Answers != ""
	svc, st, err := newService(ctx, opts.RootOptions, opts.Programs, path, writes)
	if err != nil {
		return setupError(formatter, err)
	}
	defer st.Close()

	if _, err := svc.Programs().Program(program); err != nil {
		return programError(formatter, program, err)
	}

	if err := loadInputs(ctx, svc, opts, subjectID, program); err != nil {
		return inputError(formatter, err)
	}

	res, err := svc.Evaluate(ctx, subjectID, program, opts.Record)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	report := newEvaluationReport(program, res)
	if err := outputEvaluation(formatter, report); err != nil {
		return err
	}
	if !report.Converged {
		return NewExitError(ExitFailure, report.Warning)
	}
	return nil
}

// loadInputs stores the subject document and imports the answers file.
func loadInputs(ctx context.Context, svc *checklist.Service, opts *EvaluateOptions, subjectID, program string) error {
	if opts.Subject != "" {
		doc, err := subject.LoadDocument(opts.Subject)
		if err != nil {
			return &LoadError{Code: ErrCodeSubject, Message: err.Error()}
		}
		if err := svc.PutSubject(ctx, subjectID, doc.Object()); err != nil {
			return err
		}
	}

	if opts.Answers != "" {
		doc, err := subject.LoadDocument(opts.Answers)
		if err != nil {
			return &LoadError{Code: ErrCodeSubject, Message: err.Error()}
		}
		answers := subject.AnswersFromObject(doc.Object())
		if _, err := svc.Import(ctx, subjectID, program, answers, recordedBy); err != nil {
			return err
		}
	}
	return nil
}

// inputError reports a failure to load or store evaluation inputs.
func inputError(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	if engine.IsAnswerError(err) {
		return f.Fail(ExitCommandError, ErrCodeAnswer, err.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
}

func newEvaluationReport(program string, res *checklist.Result) *EvaluationReport {
	act := res.Activation
	progress := act.Progress()

	report := &EvaluationReport{
		Program:     program,
		ProgramHash: act.ProgramHash,
		SubjectID:   res.SubjectID,
		Active:      []string(act.Active),
		Pending:     []PendingQuestion{},
		Progress:    progress,
		Complete:    progress.Complete(),
		Sweeps:      act.Sweeps,
		Converged:   act.Converged,
		Trace:       act.Trace,
		AnswersHash: res.AnswersHash,
		answers:     res.Answers,
	}
	if report.Active == nil {
		report.Active = []string{}
	}
	if act.Err != nil {
		report.Warning = act.Err.Error()
	}
	if res.Evaluation != nil {
		report.EvaluationID = res.Evaluation.ID
		report.Seq = res.Evaluation.Seq
	}

	for _, inst := range act.Pending() {
		q := PendingQuestion{
			ID:       inst.ID,
			Text:     inst.Text,
			Type:     inst.Type,
			Section:  inst.Section,
			Optional: inst.Optional,
		}
		for _, r := range inst.Responses {
			q.Responses = append(q.Responses, ir.Display(r))
		}
		report.Pending = append(report.Pending, q)
	}
	return report
}

// outputEvaluation writes the report. Text output lists every active
// question, answered ones with their value.
func outputEvaluation(formatter *OutputFormatter, report *EvaluationReport) error {
	if formatter.JSON() {
		return formatter.Success(report)
	}

	w := formatter.Writer
	p := report.Progress
	fmt.Fprintf(w, "%s for %s: %d active, %d answered (%d/%d required)\n\n",
		report.Program, report.SubjectID, p.Active, p.Answered, p.RequiredAnswered, p.Required)

	pending := make(map[string]PendingQuestion, len(report.Pending))
	for _, q := range report.Pending {
		pending[q.ID] = q
	}

	for _, id := range report.Active {
		q, open := pending[id]
		if !open {
			v, _ := report.answers.Answer(id)
			fmt.Fprintf(w, "  ✓ %s = %s\n", id, ir.Display(v))
			continue
		}
		suffix := ""
		if q.Optional {
			suffix = " (optional)"
		}
		fmt.Fprintf(w, "  • %s: %s%s\n", id, q.Text, suffix)
		if len(q.Responses) > 0 && formatter.Verbose {
			fmt.Fprintf(w, "      responses: %v\n", q.Responses)
		}
	}

	if formatter.Verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Activation (%d sweep(s)):\n", report.Sweeps)
		for _, s := range report.Trace {
			fmt.Fprintf(w, "  [%d] %s %s", s.Sweep, s.MeasureID, s.Reason)
			if len(s.Sources) > 0 {
				fmt.Fprintf(w, " %v", s.Sources)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w)
	switch {
	case !report.Converged:
		fmt.Fprintf(w, "✗ %s\n", report.Warning)
	case report.Complete:
		fmt.Fprintln(w, "✓ Checklist complete")
	default:
		fmt.Fprintf(w, "%d question(s) pending\n", len(report.Pending))
	}
	if report.EvaluationID != "" {
		fmt.Fprintf(w, "Recorded evaluation %s (seq %d)\n", report.EvaluationID, report.Seq)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
