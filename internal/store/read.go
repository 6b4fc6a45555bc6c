package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// Subject returns the stored data document for a subject.
// Returns ErrNotFound if none was stored.
func (s *Store) Subject(ctx context.Context, id string) (ir.IRObject, error) {
	var docJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM subjects WHERE id = ?
	`, id).Scan(&docJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subject %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read subject: %w", err)
	}
	return unmarshalDocument(docJSON)
}

// SubjectSeq returns the seq at which the subject's document was last
// stored, or 0 if it has none.
func (s *Store) SubjectSeq(ctx context.Context, id string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM subjects WHERE id = ?
	`, id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read subject seq: %w", err)
	}
	return seq, nil
}

// LatestAnswers returns the current answer per measure for a subject under
// a program: for each measure, the answer with the highest seq.
//
// Returns an empty (non-nil) Answers if nothing was recorded.
func (s *Store) LatestAnswers(ctx context.Context, subjectID, program string) (subject.Answers, error) {
	return s.AnswersAt(ctx, subjectID, program, math.MaxInt64)
}

// AnswersAt returns the answer state as it stood at seq: for each measure,
// the answer with the highest seq not after seq. Used to rebuild the input
// of a stored evaluation.
func (s *Store) AnswersAt(ctx context.Context, subjectID, program string, seq int64) (subject.Answers, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.measure_id, a.value
		FROM answers a
		WHERE a.subject_id = ? AND a.program = ? AND a.seq <= ?
		  AND a.seq = (
			SELECT MAX(b.seq) FROM answers b
			WHERE b.subject_id = a.subject_id
			  AND b.program = a.program
			  AND b.measure_id = a.measure_id
			  AND b.seq <= ?
		  )
		ORDER BY a.measure_id COLLATE BINARY ASC
	`, subjectID, program, seq, seq)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := subject.Answers{}
	for rows.Next() {
		var measureID, valueJSON string
		if err := rows.Scan(&measureID, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		v, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, fmt.Errorf("answer %q: %w", measureID, err)
		}
		answers[measureID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// AnswerHistory returns every answer recorded for a subject under a program
// in log order (seq ASC).
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) AnswerHistory(ctx context.Context, subjectID, program string) ([]ir.Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, subject_id, program, measure_id, value, recorded_by
		FROM answers
		WHERE subject_id = ? AND program = ?
		ORDER BY seq ASC
	`, subjectID, program)
	if err != nil {
		return nil, fmt.Errorf("query answer history: %w", err)
	}
	defer rows.Close()

	history := []ir.Answer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer history: %w", err)
	}
	return history, nil
}

// answerAt reads the answer stored at seq.
func (s *Store) answerAt(ctx context.Context, seq int64) (ir.Answer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, subject_id, program, measure_id, value, recorded_by
		FROM answers WHERE seq = ?
	`, seq)
	return scanAnswer(row)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnswer(row rowScanner) (ir.Answer, error) {
	var (
		a         ir.Answer
		valueJSON string
	)
	err := row.Scan(&a.Seq, &a.SubjectID, &a.Program, &a.MeasureID, &valueJSON, &a.RecordedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Answer{}, fmt.Errorf("answer: %w", ErrNotFound)
	}
	if err != nil {
		return ir.Answer{}, fmt.Errorf("scan answer: %w", err)
	}
	a.Value, err = unmarshalValue(valueJSON)
	if err != nil {
		return ir.Answer{}, fmt.Errorf("answer seq %d: %w", a.Seq, err)
	}
	return a, nil
}

// Evaluation returns the stored evaluation with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) Evaluation(ctx context.Context, id string) (ir.Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, program, program_hash, answers_hash, active, sweeps, converged, seq, engine_version, ir_version
		FROM evaluations WHERE id = ?
	`, id)
	return scanEvaluation(row)
}

// Evaluations returns the stored evaluations for a subject in log order.
// An empty program returns evaluations across every program.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) Evaluations(ctx context.Context, subjectID, program string) ([]ir.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, program, program_hash, answers_hash, active, sweeps, converged, seq, engine_version, ir_version
		FROM evaluations
		WHERE subject_id = ? AND (? = '' OR program = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, subjectID, program, program)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	evaluations := []ir.Evaluation{}
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evaluations, nil
}

func scanEvaluation(row rowScanner) (ir.Evaluation, error) {
	var (
		ev         ir.Evaluation
		activeJSON string
		converged  int
	)
	err := row.Scan(
		&ev.ID,
		&ev.SubjectID,
		&ev.Program,
		&ev.ProgramHash,
		&ev.AnswersHash,
		&activeJSON,
		&ev.Sweeps,
		&converged,
		&ev.Seq,
		&ev.EngineVersion,
		&ev.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Evaluation{}, fmt.Errorf("evaluation: %w", ErrNotFound)
	}
	if err != nil {
		return ir.Evaluation{}, fmt.Errorf("scan evaluation: %w", err)
	}

	ev.Converged = converged == 1
	ev.Active, err = unmarshalActive(activeJSON)
	if err != nil {
		return ir.Evaluation{}, fmt.Errorf("evaluation %s: %w", ev.ID, err)
	}
	return ev, nil
}
