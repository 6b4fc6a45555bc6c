package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/axisenergy/checklist/internal/checklist"
	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/registry"
	"github.com/axisenergy/checklist/internal/store"
	"github.com/axisenergy/checklist/internal/subject"
	"github.com/axisenergy/checklist/internal/testutil"
	"github.com/axisenergy/checklist/programs"
)

// recordedBy marks answers written by the harness.
const recordedBy = "harness"

// Harness is the test execution engine.
// It runs one scenario with a deterministic clock and evaluation ids.
type Harness struct {
	scenario  *Scenario
	subjectID string

	svc    *checklist.Service
	prog   *registry.Program
	clock  *engine.Clock
	logger *slog.Logger

	// active is the active set of the last evaluation.
	active []string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Load the program catalogue and open the store
//  2. Store the subject document and import setup answers
//  3. Evaluate the initial checklist
//  4. Execute flow steps, evaluating after each
//  5. Evaluate assertions
//
// An error is returned only when the scenario cannot run at all; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	catalogue, err := loadPrograms(scenario.Programs, logger)
	if err != nil {
		return nil, err
	}
	prog, err := catalogue.Program(scenario.Program)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := engine.NewClock()
	opts := []checklist.Option{
		checklist.WithLogger(logger),
		checklist.WithClock(clock),
		checklist.WithIDGenerator(testutil.NewSequentialIDGenerator(scenario.IDPrefix)),
	}
	if scenario.MaxSweeps > 0 {
		opts = append(opts, checklist.WithMaxSweeps(scenario.MaxSweeps))
	}
	svc, err := checklist.New(ctx, st, catalogue, opts...)
	if err != nil {
		return nil, err
	}

	subjectID := scenario.SubjectID
	if subjectID == "" {
		subjectID = DefaultSubjectID
	}

	h := &Harness{
		scenario:  scenario,
		subjectID: subjectID,
		svc:       svc,
		prog:      prog,
		clock:     clock,
		logger:    logger,
	}

	result := NewResult()
	if err := h.executeSetup(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}
	result.Active = slices.Clone(h.active)

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// loadPrograms compiles the scenario's program directory, or the embedded
// catalogue when dir is empty.
func loadPrograms(dir string, logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.New(registry.WithLogger(logger))
	if dir == "" {
		if err := reg.LoadFS(programs.FS); err != nil {
			return nil, fmt.Errorf("failed to load embedded programs: %w", err)
		}
		return reg, nil
	}
	if err := reg.LoadDir(dir); err != nil {
		return nil, fmt.Errorf("failed to load programs from %s: %w", dir, err)
	}
	return reg, nil
}

// executeSetup stores the subject document, imports setup answers and
// records the initial evaluation.
func (h *Harness) executeSetup(ctx context.Context, result *Result) error {
	if h.scenario.Subject != nil {
		if err := h.putSubject(ctx, h.scenario.Subject); err != nil {
			return err
		}
	}

	if len(h.scenario.Setup) > 0 {
		answers := make(subject.Answers, len(h.scenario.Setup))
		for id, raw := range h.scenario.Setup {
			v, err := convertValue(raw)
			if err != nil {
				return fmt.Errorf("setup %s: %w", id, err)
			}
			answers[id] = v
		}
		recorded, err := h.svc.Import(ctx, h.subjectID, h.scenario.Program, answers, recordedBy)
		if err != nil {
			return err
		}
		for _, a := range recorded {
			result.AddAnswerTrace(a.MeasureID, a.Value, a.Seq)
		}
	}

	_, err := h.evaluate(ctx, true, result)
	return err
}

// executeFlow runs all flow steps and checks their expect clauses.
//
// Accepted steps are followed by a recorded evaluation. A rejected answer
// changes nothing, so its expect clause is checked against an unrecorded
// evaluation.
func (h *Harness) executeFlow(ctx context.Context, result *Result) error {
	for i, step := range h.scenario.Flow {
		changed := true

		switch step.kind() {
		case "answer":
			accepted, err := h.answer(ctx, i, step, result)
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			changed = accepted
		case "subject":
			if err := h.putSubject(ctx, step.Subject); err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
		}

		res, err := h.evaluate(ctx, changed, result)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		h.checkExpect(i, step.Expect, res.Activation, result)

		h.logger.Info("flow step completed",
			"step", i,
			"kind", step.kind(),
			"active", len(res.Activation.Active))
	}
	return nil
}

// answer submits one answer. It reports whether the answer was accepted;
// an answer rejected by the service is a scenario outcome, not an error.
func (h *Harness) answer(ctx context.Context, index int, step FlowStep, result *Result) (bool, error) {
	req := checklist.AnswerRequest{
		SubjectID:  h.subjectID,
		Program:    h.scenario.Program,
		MeasureID:  step.Answer,
		Text:       step.Text,
		RecordedBy: recordedBy,
	}
	shown := ir.IRValue(ir.IRString(step.Text))
	if step.Value != nil {
		v, err := convertValue(step.Value)
		if err != nil {
			return false, fmt.Errorf("answer %s: %w", step.Answer, err)
		}
		req.Value = v
		shown = v
	}

	wantErr := ""
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}

	a, err := h.svc.Answer(ctx, req)
	if err != nil {
		if !engine.IsAnswerError(err) {
			return false, err
		}
		result.AddRejectedTrace(step.Answer, shown, h.clock.Current())
		switch {
		case wantErr == "":
			result.AddError(fmt.Sprintf("flow[%d]: answer %s rejected: %v", index, step.Answer, err))
		case !strings.Contains(err.Error(), wantErr):
			result.AddError(fmt.Sprintf("flow[%d]: error %q does not contain %q", index, err.Error(), wantErr))
		}
		return false, nil
	}

	if wantErr != "" {
		result.AddError(fmt.Sprintf("flow[%d]: expected error containing %q, answer %s was accepted",
			index, wantErr, step.Answer))
	}
	result.AddAnswerTrace(a.MeasureID, a.Value, a.Seq)
	return true, nil
}

func (h *Harness) putSubject(ctx context.Context, raw map[string]any) error {
	doc, err := subject.DocumentValue(raw)
	if err != nil {
		return fmt.Errorf("subject document: %w", err)
	}
	return h.svc.PutSubject(ctx, h.subjectID, doc)
}

// evaluate runs the checklist and appends active set changes to the trace.
func (h *Harness) evaluate(ctx context.Context, record bool, result *Result) (*checklist.Result, error) {
	res, err := h.svc.Evaluate(ctx, h.subjectID, h.scenario.Program, record)
	if err != nil {
		return nil, err
	}

	seq := h.clock.Current()
	if res.Evaluation != nil {
		seq = res.Evaluation.Seq
		result.Evaluations++
	}
	h.traceChanges(res.Activation, seq, result)
	h.active = activeList(res.Activation)
	return res, nil
}

// traceChanges emits activate and deactivate events in checklist order.
func (h *Harness) traceChanges(act *engine.Activation, seq int64, result *Result) {
	steps := make(map[string]engine.Step, len(act.Trace))
	for _, s := range act.Trace {
		steps[s.MeasureID] = s
	}

	for _, inst := range h.prog.Spec.Instruments {
		was := slices.Contains(h.active, inst.ID)
		now := act.Active.Contains(inst.ID)
		switch {
		case now && !was:
			s := steps[inst.ID]
			result.Trace = append(result.Trace, TraceEvent{
				Type:      EventActivate,
				MeasureID: inst.ID,
				Reason:    s.Reason,
				Sweep:     s.Sweep,
				Seq:       seq,
			})
		case was && !now:
			result.Trace = append(result.Trace, TraceEvent{
				Type:      EventDeactivate,
				MeasureID: inst.ID,
				Seq:       seq,
			})
		}
	}
}

// checkExpect validates a step's expect clause against its evaluation.
func (h *Harness) checkExpect(index int, expect *ExpectClause, act *engine.Activation, result *Result) {
	if expect == nil {
		return
	}
	active := activeList(act)

	if expect.Active != nil {
		if diff := cmp.Diff(expect.Active, active); diff != "" {
			result.AddError(fmt.Sprintf("flow[%d]: active set mismatch (-want +got):\n%s", index, diff))
		}
	}
	for _, id := range expect.Inactive {
		if slices.Contains(active, id) {
			result.AddError(fmt.Sprintf("flow[%d]: %s is active, want inactive", index, id))
		}
	}
	if expect.Converged != nil && *expect.Converged != act.Converged {
		result.AddError(fmt.Sprintf("flow[%d]: converged = %t, want %t", index, act.Converged, *expect.Converged))
	}
}

func activeList(act *engine.Activation) []string {
	if len(act.Active) == 0 {
		return []string{}
	}
	return slices.Clone([]string(act.Active))
}

// convertValue converts a YAML-decoded answer value to an IRValue.
// Null is rejected: an answer must say something.
func convertValue(raw any) (ir.IRValue, error) {
	if raw == nil {
		return nil, fmt.Errorf("null answer values are not allowed")
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("unsupported answer value: %w", err)
	}
	return v, nil
}
