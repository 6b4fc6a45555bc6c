package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// ErrSeqConflict is returned when a seq is already taken by a different
// record. It means two writers shared a clock position, which the
// single-writer clock rules out.
var ErrSeqConflict = errors.New("seq already used by a different record")

// RecordAnswer appends an answer to the log.
//
// Answers are identified by seq. Writing the same answer twice is a no-op;
// writing a different answer under a used seq returns ErrSeqConflict.
// The value is stored as canonical JSON.
func (s *Store) RecordAnswer(ctx context.Context, a ir.Answer) error {
	if err := checkAnswer(a); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	valueJSON, err := marshalValue(a.Value)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO answers
		(seq, subject_id, program, measure_id, value, recorded_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		a.Seq,
		a.SubjectID,
		a.Program,
		a.MeasureID,
		valueJSON,
		a.RecordedBy,
	)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Seq already present: idempotent only if it is the same answer.
	existing, err := s.answerAt(ctx, a.Seq)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	if existing.SubjectID != a.SubjectID || existing.Program != a.Program ||
		existing.MeasureID != a.MeasureID || !ir.Equal(existing.Value, a.Value) {
		return fmt.Errorf("record answer seq %d: %w", a.Seq, ErrSeqConflict)
	}
	return nil
}

func checkAnswer(a ir.Answer) error {
	switch {
	case a.Seq <= 0:
		return fmt.Errorf("seq must be positive, got %d", a.Seq)
	case a.SubjectID == "":
		return fmt.Errorf("subject id is required")
	case a.Program == "":
		return fmt.Errorf("program is required")
	case a.MeasureID == "":
		return fmt.Errorf("measure id is required")
	case !subject.Answered(a.Value):
		return fmt.Errorf("answer to %q is empty", a.MeasureID)
	}
	return nil
}

// PutSubject stores the data document for a subject, replacing any earlier
// version. seq records when it was stored on the logical clock.
func (s *Store) PutSubject(ctx context.Context, id string, doc ir.IRObject, seq int64) error {
	if id == "" {
		return fmt.Errorf("put subject: id is required")
	}

	docJSON, err := marshalDocument(doc)
	if err != nil {
		return fmt.Errorf("put subject: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subjects (id, document, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, seq = excluded.seq
	`, id, docJSON, seq)
	if err != nil {
		return fmt.Errorf("put subject: %w", err)
	}
	return nil
}

// RecordEvaluation stores an activation snapshot.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate ids are
// silently ignored. A different evaluation at a used seq is rejected by the
// UNIQUE constraint.
func (s *Store) RecordEvaluation(ctx context.Context, ev ir.Evaluation) error {
	if ev.ID == "" {
		return fmt.Errorf("record evaluation: id is required")
	}

	activeJSON, err := marshalActive(ev.Active)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	converged := 0
	if ev.Converged {
		converged = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations
		(id, subject_id, program, program_hash, answers_hash, active, sweeps, converged, seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.SubjectID,
		ev.Program,
		ev.ProgramHash,
		ev.AnswersHash,
		activeJSON,
		ev.Sweeps,
		converged,
		ev.Seq,
		ev.EngineVersion,
		ev.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	return nil
}
