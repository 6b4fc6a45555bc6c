package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/ir"
)

// answerAll records answers in order against one subject.
func answerAll(t *testing.T, db, program, subjectID string, pairs ...string) {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	for i := 0; i < len(pairs); i += 2 {
		_, err := execute(t, "answer", program, subjectID, pairs[i], pairs[i+1], "--db", db)
		require.NoError(t, err, "answer %s", pairs[i])
	}
}

func TestAnswerRecordsAndReports(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")

	out, err := execute(t, "answer", "or-deep-condition-case", "home-1", "top", "A", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Recorded top = A (seq 1)")
	assert.Contains(t, out, "2 active, 1 pending")

	out, err = execute(t, "--format", "json", "answer", "or-deep-condition-case", "home-1", "seed-a", "Yes", "--db", db, "--by", "rater-7")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Answer struct {
				MeasureID  string `json:"measure_id"`
				Seq        int64  `json:"seq"`
				RecordedBy string `json:"recorded_by"`
			} `json:"answer"`
			Active  []string `json:"active"`
			Pending int      `json:"pending"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "seed-a", resp.Data.Answer.MeasureID)
	assert.Equal(t, int64(2), resp.Data.Answer.Seq)
	assert.Equal(t, "rater-7", resp.Data.Answer.RecordedBy)
	assert.Equal(t, []string{"top", "seed-a", "logic-or"}, resp.Data.Active)
	assert.Equal(t, 1, resp.Data.Pending)
}

func TestAnswerInactiveInstrument(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")

	_, err := execute(t, "answer", "or-deep-condition-case", "home-1", "seed-b", "Yes", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeAnswer)
	assert.Contains(t, err.Error(), "instrument is not active")
}

func TestAnswerNotASuggestedResponse(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")

	_, err := execute(t, "answer", "or-deep-condition-case", "home-1", "top", "C", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not one of the suggested responses")
}

func TestAnswerUnknownMeasure(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")

	_, err := execute(t, "answer", "or-deep-condition-case", "home-1", "nope", "A", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeAnswer)
	assert.Contains(t, err.Error(), "no such instrument")
}

func TestAnswerJSONValue(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")
	programs := "--programs=" + programsFixture

	out, err := execute(t, "--format", "json", "answer", "ventilation-survey", "home-1",
		"ventilation-types", `["ERV", "HRV"]`, "--json", "--db", db, programs)
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Answer struct {
				Value []string `json:"value"`
			} `json:"answer"`
			Active []string `json:"active"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"ERV", "HRV"}, resp.Data.Answer.Value)
	assert.Equal(t, []string{"ventilation-types", "erv-model"}, resp.Data.Active)

	_, err = execute(t, "answer", "ventilation-survey", "home-1", "exhaust-fan-count", "{", "--json", "--db", db, programs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON value")
}

func TestAnswerIntegerParsing(t *testing.T) {
	db := filepath.Join(t.TempDir(), "axis.db")
	programs := "--programs=" + programsFixture

	_, err := execute(t, "answer", "ventilation-survey", "home-1", "ventilation-types", `["Exhaust only"]`, "--json", "--db", db, programs)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "answer", "ventilation-survey", "home-1", "exhaust-fan-count", "4", "--db", db, programs)
	require.NoError(t, err)

	var resp struct {
		Data struct {
			Answer struct {
				Value json.RawMessage `json:"value"`
			} `json:"answer"`
			Active []string `json:"active"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	v, err := ir.UnmarshalIRValue(resp.Data.Answer.Value)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(4), v)
	assert.Contains(t, resp.Data.Active, "fan-review")
}
