package store

import (
	"path/filepath"
	"testing"

	"github.com/axisenergy/checklist/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAnswer creates an answer for subject "home-1" under "eto-2024".
func createTestAnswer(measureID string, value ir.IRValue, seq int64) ir.Answer {
	return ir.Answer{
		SubjectID: "home-1",
		Program:   "eto-2024",
		MeasureID: measureID,
		Value:     value,
		Seq:       seq,
	}
}

// createTestEvaluation creates an evaluation for subject "home-1".
func createTestEvaluation(id string, seq int64, active ...string) ir.Evaluation {
	return ir.Evaluation{
		ID:            id,
		SubjectID:     "home-1",
		Program:       "eto-2024",
		ProgramHash:   "test-program-hash",
		AnswersHash:   "test-answers-hash",
		Active:        active,
		Sweeps:        1,
		Converged:     true,
		Seq:           seq,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}
