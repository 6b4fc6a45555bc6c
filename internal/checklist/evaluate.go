package checklist

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/axisenergy/checklist/internal/engine"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// Result is one checklist evaluation.
type Result struct {
	SubjectID   string
	Activation  *engine.Activation
	Answers     subject.Answers
	AnswersHash string

	// Evaluation is the stored snapshot, set only when the result was
	// recorded.
	Evaluation *ir.Evaluation
}

// Evaluate computes the active checklist for a subject from its stored
// document and latest answers. With record set, the activation is logged
// as an evaluation snapshot.
//
// A sweep bound hit is not an error here: the partial Activation is
// returned with its Err set, and is recorded as not converged.
func (s *Service) Evaluate(ctx context.Context, subjectID, program string, record bool) (*Result, error) {
	prog, err := s.programs.Program(program)
	if err != nil {
		return nil, err
	}
	subj, answers, err := s.state(ctx, subjectID, program)
	if err != nil {
		return nil, err
	}

	act := prog.Engine(s.engineOptions()...).Activate(subj, answers)
	hash, err := ir.AnswersHash(answers.Object())
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", subjectID, err)
	}

	res := &Result{
		SubjectID:   subjectID,
		Activation:  act,
		Answers:     answers,
		AnswersHash: hash,
	}
	if !record {
		return res, nil
	}

	ev := ir.Evaluation{
		ID:            s.ids.Generate(),
		SubjectID:     subjectID,
		Program:       program,
		ProgramHash:   act.ProgramHash,
		AnswersHash:   hash,
		Active:        slices.Clone([]string(act.Active)),
		Sweeps:        act.Sweeps,
		Converged:     act.Converged,
		Seq:           s.clock.Next(),
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := s.store.RecordEvaluation(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info("evaluation recorded",
		"id", ev.ID,
		"subject", subjectID,
		"program", program,
		"active", len(ev.Active),
		"converged", ev.Converged,
		"seq", ev.Seq)
	res.Evaluation = &ev
	return res, nil
}

// Verification compares a stored evaluation with a fresh activation over
// the answers as they stood at its seq.
type Verification struct {
	Evaluation ir.Evaluation `json:"evaluation"`
	Active     []string      `json:"active"`

	ActiveMatch      bool `json:"active_match"`
	AnswersHashMatch bool `json:"answers_hash_match"`
	ProgramHashMatch bool `json:"program_hash_match"`

	// SubjectChanged is set when the subject document was replaced after
	// the evaluation; the recomputation then runs against the newer
	// document.
	SubjectChanged bool `json:"subject_changed"`

	// Diff describes an active set mismatch (-stored +recomputed).
	Diff string `json:"diff,omitempty"`
}

// OK reports whether the recomputed activation matches the stored one.
func (v Verification) OK() bool {
	return v.ActiveMatch && v.AnswersHashMatch
}

// Verify re-runs the stored evaluation id and compares the result.
func (s *Service) Verify(ctx context.Context, id string) (*Verification, error) {
	ev, err := s.store.Evaluation(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, ev)
}

// VerifyChecklist verifies every stored evaluation of a subject under a
// program, in log order.
func (s *Service) VerifyChecklist(ctx context.Context, subjectID, program string) ([]Verification, error) {
	evs, err := s.store.Evaluations(ctx, subjectID, program)
	if err != nil {
		return nil, err
	}
	out := make([]Verification, 0, len(evs))
	for _, ev := range evs {
		v, err := s.verify(ctx, ev)
		if err != nil {
			return out, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *Service) verify(ctx context.Context, ev ir.Evaluation) (*Verification, error) {
	prog, err := s.programs.Program(ev.Program)
	if err != nil {
		return nil, err
	}

	answers, err := s.store.AnswersAt(ctx, ev.SubjectID, ev.Program, ev.Seq)
	if err != nil {
		return nil, err
	}
	subj, _, err := s.state(ctx, ev.SubjectID, ev.Program)
	if err != nil {
		return nil, err
	}
	subjectSeq, err := s.store.SubjectSeq(ctx, ev.SubjectID)
	if err != nil {
		return nil, err
	}

	act := prog.Engine(s.engineOptions()...).Activate(subj, answers)
	hash, err := ir.AnswersHash(answers.Object())
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", ev.ID, err)
	}

	v := &Verification{
		Evaluation:       ev,
		Active:           []string(act.Active),
		AnswersHashMatch: hash == ev.AnswersHash,
		ProgramHashMatch: prog.Hash == ev.ProgramHash,
		SubjectChanged:   subjectSeq > ev.Seq,
	}
	if v.Active == nil {
		v.Active = []string{}
	}
	v.Diff = cmp.Diff(ev.Active, v.Active)
	v.ActiveMatch = v.Diff == ""

	if !v.OK() {
		s.logger.Warn("evaluation does not reproduce",
			"id", ev.ID,
			"subject", ev.SubjectID,
			"program", ev.Program,
			"answers_hash_match", v.AnswersHashMatch,
			"program_hash_match", v.ProgramHashMatch)
	}
	return v, nil
}
