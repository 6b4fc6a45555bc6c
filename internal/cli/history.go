package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Program  string
	Answers  bool
}

// ChecklistHistory is the stored log of one checklist.
type ChecklistHistory struct {
	Program     string          `json:"program"`
	Evaluations []ir.Evaluation `json:"evaluations"`
	Answers     []ir.Answer     `json:"answers,omitempty"`

	// Log interleaves answers and evaluations in seq order. Set with --answers.
	Log []LogEntry `json:"log,omitempty"`
}

// LogEntry is one answer or evaluation of a checklist log.
type LogEntry struct {
	Seq          int64      `json:"seq"`
	Type         string     `json:"type"`
	MeasureID    string     `json:"measure_id,omitempty"`
	Value        ir.IRValue `json:"value,omitempty"`
	RecordedBy   string     `json:"recorded_by,omitempty"`
	EvaluationID string     `json:"evaluation_id,omitempty"`
	Active       []string   `json:"active,omitempty"`
}

// HistoryResult is the output of the history command.
type HistoryResult struct {
	SubjectID  string             `json:"subject_id"`
	Checklists []ChecklistHistory `json:"checklists"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <subject-id>",
		Short: "Show the evaluation log of a subject",
		Long: `Show the recorded evaluations of a subject, in log order.

Each evaluation lists the active questions at the time, the hash of the
answers it was computed from and whether activation converged. With
--answers the answer log is shown as well.

Examples:
  axis history home-1 --db axis.db
  axis history home-1 --db axis.db --program eto-2024 --answers`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config store.path)")
	cmd.Flags().StringVar(&opts.Program, "program", "", "restrict to one program")
	cmd.Flags().BoolVar(&opts.Answers, "answers", false, "include the answer log")

	return cmd
}

func runHistory(opts *HistoryOptions, subjectID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(dbPath(opts.RootOptions, opts.Database), false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	programs, err := subjectPrograms(ctx, st, subjectID, opts.Program)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result := HistoryResult{SubjectID: subjectID, Checklists: []ChecklistHistory{}}
	for _, program := range programs {
		h := ChecklistHistory{Program: program}
		if opts.Answers {
			events, err := st.ReplayChecklist(ctx, subjectID, program)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			fillFromLog(&h, events)
		} else {
			h.Evaluations, err = st.Evaluations(ctx, subjectID, program)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
		}
		if h.Evaluations == nil {
			h.Evaluations = []ir.Evaluation{}
		}
		result.Checklists = append(result.Checklists, h)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputHistoryText(formatter, result)
}

// fillFromLog splits a replayed checklist log into its answers and
// evaluations and keeps the merged order for display.
func fillFromLog(h *ChecklistHistory, events []store.ChecklistEvent) {
	for _, e := range events {
		entry := LogEntry{Seq: e.Seq, Type: e.Type.String()}
		switch e.Type {
		case store.EventAnswer:
			h.Answers = append(h.Answers, *e.Answer)
			entry.MeasureID = e.Answer.MeasureID
			entry.Value = e.Answer.Value
			entry.RecordedBy = e.Answer.RecordedBy
		case store.EventEvaluation:
			h.Evaluations = append(h.Evaluations, *e.Evaluation)
			entry.EvaluationID = e.Evaluation.ID
			entry.Active = e.Evaluation.Active
		}
		h.Log = append(h.Log, entry)
	}
}

// subjectPrograms lists the programs a subject has a stored log under, or
// just program when one is given.
func subjectPrograms(ctx context.Context, st *store.Store, subjectID, program string) ([]string, error) {
	if program != "" {
		return []string{program}, nil
	}
	checklists, err := st.ListChecklists(ctx)
	if err != nil {
		return nil, err
	}
	var programs []string
	for _, c := range checklists {
		if c.SubjectID == subjectID {
			programs = append(programs, c.Program)
		}
	}
	return programs, nil
}

func outputHistoryText(formatter *OutputFormatter, result HistoryResult) error {
	w := formatter.Writer

	if len(result.Checklists) == 0 {
		fmt.Fprintf(w, "No history found for subject: %s\n", result.SubjectID)
		return nil
	}

	for _, h := range result.Checklists {
		fmt.Fprintf(w, "%s / %s: %d evaluation(s)\n", result.SubjectID, h.Program, len(h.Evaluations))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  SEQ\tID\tACTIVE\tSWEEPS\tCONVERGED\tANSWERS")
		for _, ev := range h.Evaluations {
			fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\t%t\t%s\n",
				ev.Seq, ev.ID, len(ev.Active), ev.Sweeps, ev.Converged, shortHash(ev.AnswersHash))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if formatter.Verbose {
			for _, ev := range h.Evaluations {
				fmt.Fprintf(w, "  [%d] active: %v\n", ev.Seq, ev.Active)
			}
		}

		if len(h.Log) > 0 {
			fmt.Fprintln(w, "  Log:")
			for _, e := range h.Log {
				if e.Type == store.EventEvaluation.String() {
					fmt.Fprintf(w, "    [%d] evaluated %s: %d active\n", e.Seq, e.EvaluationID, len(e.Active))
					continue
				}
				by := ""
				if e.RecordedBy != "" {
					by = " by " + e.RecordedBy
				}
				fmt.Fprintf(w, "    [%d] %s = %s%s\n", e.Seq, e.MeasureID, ir.Display(e.Value), by)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

// shortHash abbreviates a content hash for tables.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
