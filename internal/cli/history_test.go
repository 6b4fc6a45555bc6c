package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")
	answerAll(t, db, "or-deep-condition-case", "home-1", "top", "A", "seed-a", "Yes")

	_, err := execute(t, "evaluate", "or-deep-condition-case", "--db", db, "--subject-id", "home-1", "--record")
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "history", "home-1", "--db", db, "--answers")
		require.NoError(t, err)

		assert.Contains(t, out, "home-1 / or-deep-condition-case: 1 evaluation(s)")
		assert.Contains(t, out, "SEQ")
		assert.Contains(t, out, "[1] top = A by cli")
		assert.Contains(t, out, "[2] seed-a = Yes by cli")
		assert.Regexp(t, `\[3\] evaluated \S+: 3 active`, out)
		assert.Less(t, strings.Index(out, "[2] seed-a"), strings.Index(out, "[3] evaluated"), "log is in seq order")
	})

	t.Run("json log", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "history", "home-1", "--db", db, "--answers")
		require.NoError(t, err)

		var resp struct {
			Data struct {
				Checklists []struct {
					Log []struct {
						Seq          int64  `json:"seq"`
						Type         string `json:"type"`
						MeasureID    string `json:"measure_id"`
						EvaluationID string `json:"evaluation_id"`
					} `json:"log"`
				} `json:"checklists"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Checklists, 1)

		log := resp.Data.Checklists[0].Log
		require.Len(t, log, 3)
		assert.Equal(t, "answer", log[0].Type)
		assert.Equal(t, "top", log[0].MeasureID)
		assert.Equal(t, "answer", log[1].Type)
		assert.Equal(t, int64(3), log[2].Seq)
		assert.Equal(t, "evaluation", log[2].Type)
		assert.NotEmpty(t, log[2].EvaluationID)
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "history", "home-1", "--db", db)
		require.NoError(t, err)

		var resp struct {
			Status string `json:"status"`
			Data   struct {
				SubjectID  string `json:"subject_id"`
				Checklists []struct {
					Program     string `json:"program"`
					Evaluations []struct {
						Seq    int64    `json:"seq"`
						Active []string `json:"active"`
					} `json:"evaluations"`
					Answers []json.RawMessage `json:"answers"`
				} `json:"checklists"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "home-1", resp.Data.SubjectID)
		require.Len(t, resp.Data.Checklists, 1)

		c := resp.Data.Checklists[0]
		assert.Equal(t, "or-deep-condition-case", c.Program)
		require.Len(t, c.Evaluations, 1)
		assert.Equal(t, int64(3), c.Evaluations[0].Seq)
		assert.Equal(t, []string{"top", "seed-a", "logic-or"}, c.Evaluations[0].Active)
		assert.Empty(t, c.Answers, "answers are only listed with --answers")
	})

	t.Run("unknown subject", func(t *testing.T) {
		out, err := execute(t, "history", "home-2", "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "No history found for subject: home-2")
	})
}

func TestHistoryMissingDatabase(t *testing.T) {
	_, err := execute(t, "history", "home-1", "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
	assert.Equal(t, "abc", shortHash("abc"))
}
