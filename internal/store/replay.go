package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/axisenergy/checklist/internal/ir"
)

// SubjectProgram identifies one checklist: a subject answered under a program.
type SubjectProgram struct {
	SubjectID string `json:"subject_id"`
	Program   string `json:"program"`
}

// ChecklistState summarizes the stored log of one checklist.
type ChecklistState struct {
	SubjectID   string
	Program     string
	Answers     []ir.Answer
	Evaluations []ir.Evaluation
	LastSeq     int64
}

// GetChecklistState reads the complete answer and evaluation log of one
// checklist.
func (s *Store) GetChecklistState(ctx context.Context, subjectID, program string) (ChecklistState, error) {
	state := ChecklistState{SubjectID: subjectID, Program: program}

	var err error
	state.Answers, err = s.AnswerHistory(ctx, subjectID, program)
	if err != nil {
		return ChecklistState{}, fmt.Errorf("get checklist state: %w", err)
	}
	state.Evaluations, err = s.Evaluations(ctx, subjectID, program)
	if err != nil {
		return ChecklistState{}, fmt.Errorf("get checklist state: %w", err)
	}

	for _, a := range state.Answers {
		state.LastSeq = max(state.LastSeq, a.Seq)
	}
	for _, ev := range state.Evaluations {
		state.LastSeq = max(state.LastSeq, ev.Seq)
	}
	return state, nil
}

// EventType distinguishes entries of a checklist log.
type EventType int

const (
	EventAnswer EventType = iota
	EventEvaluation
)

func (t EventType) String() string {
	switch t {
	case EventAnswer:
		return "answer"
	case EventEvaluation:
		return "evaluation"
	default:
		return "unknown"
	}
}

// ChecklistEvent is one entry of a checklist log. Exactly one of Answer and
// Evaluation is set, matching Type.
type ChecklistEvent struct {
	Type       EventType
	Seq        int64
	Answer     *ir.Answer
	Evaluation *ir.Evaluation
}

// ReplayChecklist returns the answers and evaluations of one checklist
// merged into log order. Replaying the events in order rebuilds every answer
// state an evaluation was computed from.
func (s *Store) ReplayChecklist(ctx context.Context, subjectID, program string) ([]ChecklistEvent, error) {
	state, err := s.GetChecklistState(ctx, subjectID, program)
	if err != nil {
		return nil, err
	}

	events := make([]ChecklistEvent, 0, len(state.Answers)+len(state.Evaluations))
	for i := range state.Answers {
		a := state.Answers[i]
		events = append(events, ChecklistEvent{Type: EventAnswer, Seq: a.Seq, Answer: &a})
	}
	for i := range state.Evaluations {
		ev := state.Evaluations[i]
		events = append(events, ChecklistEvent{Type: EventEvaluation, Seq: ev.Seq, Evaluation: &ev})
	}
	sortChecklistEvents(events)
	return events, nil
}

func sortChecklistEvents(events []ChecklistEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Seq != events[j].Seq {
			return events[i].Seq < events[j].Seq
		}
		return events[i].Type < events[j].Type // answer before evaluation
	})
}

// GetLastSeq returns the highest seq used in the store.
// Used to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	for _, table := range []string{"answers", "evaluations", "subjects"} {
		var seq int64
		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) FROM %s", table),
		).Scan(&seq)
		if err != nil {
			return 0, fmt.Errorf("get last seq from %s: %w", table, err)
		}
		maxSeq = max(maxSeq, seq)
	}
	return maxSeq, nil
}

// ListChecklists returns every (subject, program) pair with at least one
// answer or evaluation, ordered by subject then program.
func (s *Store) ListChecklists(ctx context.Context) ([]SubjectProgram, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject_id, program FROM answers
		UNION
		SELECT subject_id, program FROM evaluations
		ORDER BY subject_id ASC, program ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list checklists: %w", err)
	}
	defer rows.Close()

	checklists := []SubjectProgram{}
	for rows.Next() {
		var sp SubjectProgram
		if err := rows.Scan(&sp.SubjectID, &sp.Program); err != nil {
			return nil, fmt.Errorf("scan checklist: %w", err)
		}
		checklists = append(checklists, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checklists: %w", err)
	}
	return checklists, nil
}
