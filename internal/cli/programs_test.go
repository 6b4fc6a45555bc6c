package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramsBuiltIn(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewProgramsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "SLUG")
	for _, slug := range []string{"and-condition-case", "or-condition-case", "or-deep-condition-case", "data-conditions", "eto-2024"} {
		assert.Contains(t, output, slug)
	}
}

func TestProgramsFromDirectoryJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewProgramsCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--programs", programsFixture})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   []ProgramSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "ventilation-survey", resp.Data[0].Slug)
	assert.Equal(t, "Ventilation survey", resp.Data[0].Name)
	assert.Equal(t, 4, resp.Data[0].Instruments)
	assert.Equal(t, 3, resp.Data[0].Conditions)
	assert.Len(t, resp.Data[0].Hash, 64)
}

func TestProgramsMissingDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewProgramsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--programs", "/nonexistent/programs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeLoadFailed)
}

func TestProgramsInvalidCatalogueFailsAtStartup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", danglingProgram)

	buf := &bytes.Buffer{}
	cmd := NewProgramsCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--programs", dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeLoadFailed)
	assert.Contains(t, buf.String(), `"missing"`)
}
