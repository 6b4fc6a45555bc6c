package engine

import (
	"log/slog"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// DefaultMaxSweeps is the default bound on changing sweeps per activation.
const DefaultMaxSweeps = 10

// Engine evaluates one program's graph. It holds no per-subject state and
// is safe for concurrent use.
type Engine struct {
	graph     *Graph
	resolver  *Resolver
	logger    *slog.Logger
	maxSweeps int
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxSweeps sets the bound on changing sweeps.
//
// Default: 10 sweeps (DefaultMaxSweeps)
// Deeply chained programs need one sweep per link in the chain.
// Values below one keep the default.
func WithMaxSweeps(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSweeps = n
		}
	}
}

// WithLogger sets the logger for the engine and its resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine for g.
func New(g *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:     g,
		logger:    slog.Default(),
		maxSweeps: DefaultMaxSweeps,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = NewResolver(e.logger)
	return e
}

// Graph returns the graph the engine evaluates.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Activate computes the active instruments for subj given answers.
//
// Activation never fails. When the sweep bound is hit the returned
// Activation carries the partial active set, Converged is false and Err
// holds an *IterationBoundError.
func (e *Engine) Activate(subj subject.Node, answers subject.AnswerState) *Activation {
	spec := e.graph.Spec()
	active := make(map[string]bool, len(spec.Instruments))
	act := &Activation{
		Program:     spec.Slug,
		ProgramHash: e.graph.Hash(),
		instruments: spec.Instruments,
		answers:     answers,
	}

	for _, id := range e.graph.Roots() {
		active[id] = true
		act.Trace = append(act.Trace, Step{Sweep: 0, MeasureID: id, Reason: ReasonUngated})
	}

	budget := newSweepBudget(e.maxSweeps)
	for {
		var newly []Step
		for _, inst := range spec.Instruments {
			if active[inst.ID] {
				continue
			}
			if sources, ok := e.targetPasses(inst.ID, active, subj, answers); ok {
				newly = append(newly, Step{
					Sweep:     budget.Used() + 1,
					MeasureID: inst.ID,
					Reason:    e.graph.CombinationMode(inst.ID).String(),
					Sources:   sources,
				})
			}
		}

		if len(newly) == 0 {
			act.Converged = true
			break
		}

		if !budget.spend() {
			pending := make([]string, len(newly))
			for i, s := range newly {
				pending[i] = s.MeasureID
			}
			act.Err = &IterationBoundError{Program: spec.Slug, MaxSweeps: e.maxSweeps, Pending: pending}
			e.logger.Error("activation sweep bound exceeded",
				"program", spec.Slug,
				"max_sweeps", e.maxSweeps,
				"pending", pending)
			break
		}

		for _, s := range newly {
			active[s.MeasureID] = true
			e.logger.Debug("instrument activated",
				"program", spec.Slug,
				"measure", s.MeasureID,
				"sweep", s.Sweep,
				"mode", s.Reason)
		}
		act.Trace = append(act.Trace, newly...)
	}

	act.Sweeps = budget.Used()
	for _, inst := range spec.Instruments {
		if active[inst.ID] {
			act.Active = append(act.Active, inst.ID)
		}
	}
	return act
}

// targetPasses evaluates measureID's conditions against the active set.
// It returns the sources of the passing conditions.
func (e *Engine) targetPasses(measureID string, active map[string]bool, subj subject.Node, answers subject.AnswerState) ([]string, bool) {
	mode := e.graph.CombinationMode(measureID)
	var passed []string

	for _, group := range e.graph.TargetGroups(measureID) {
		for _, cond := range group.Conditions {
			if e.conditionPasses(cond, active, subj, answers) {
				passed = append(passed, cond.Source.Raw)
				if mode == ModeOnePass {
					return passed, true
				}
				continue
			}
			if mode == ModeAll {
				return nil, false
			}
		}
	}

	if mode == ModeOnePass {
		return nil, false
	}
	return passed, len(passed) > 0
}

// conditionPasses evaluates one condition. An instrument source only counts
// once that instrument is itself active; its answer must also exist, which
// resolution already enforces.
func (e *Engine) conditionPasses(cond ir.Condition, active map[string]bool, subj subject.Node, answers subject.AnswerState) bool {
	if cond.Source.IsInstrument() && !active[cond.Source.Instrument] {
		return false
	}
	return EvaluateAny(cond.Predicates, e.resolver.Resolve(cond.Source, subj, answers))
}

// ComputeActiveInstruments is the one-shot form of Engine.Activate with
// default options. The error is non-nil only when the sweep bound is hit.
func ComputeActiveInstruments(g *Graph, subj subject.Node, answers subject.AnswerState) (ActiveSet, error) {
	act := New(g).Activate(subj, answers)
	return act.Active, act.Err
}
