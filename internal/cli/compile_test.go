package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/ir"
)

const danglingProgram = `package programs

program: "broken": {
	name: "Broken"
	instruments: [
		{id: "seed", text: "Seed", type: "multiple-choice", responses: ["Yes", "No"]},
	]
	conditions: rater: instrument: {
		seed: [{when: "Yes", activates: ["missing"]}]
	}
}
`

func TestCompileValidPrograms(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{programsFixture})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Compiled 1 program(s) from 1 file(s)")
	assert.Contains(t, output, "ventilation-survey: 4 instrument(s), 3 condition(s)")
}

func TestCompileValidProgramsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{programsFixture})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ir.IRVersion, resp.Data.IRVersion)
	require.Len(t, resp.Data.Programs, 1)
	assert.Equal(t, "ventilation-survey", resp.Data.Programs[0].Spec.Slug)
	assert.NotEmpty(t, resp.Data.Programs[0].Hash)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{programsFixture, "--output", outputFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote canonical IR to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Programs, 1)

	// Writing twice yields identical bytes.
	second := filepath.Join(t.TempDir(), "again.json")
	cmd = NewCompileCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{programsFixture, "-o", second})
	require.NoError(t, cmd.Execute())

	again, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/programs"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
}

func TestCompileInvalidProgram(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", danglingProgram)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, output, compiler.ErrDanglingTarget)
	assert.Contains(t, output, `"missing"`)
}

func TestCompileInvalidProgramJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", danglingProgram)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.Error(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   []CLIError `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotEmpty(t, resp.Data)
	assert.Equal(t, compiler.ErrDanglingTarget, resp.Data[0].Code)
	assert.Equal(t, resp.Data[0], *resp.Error)
}

func TestCompileSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", "package programs\n\nprogram: {\n")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"program", ErrCodeNoPrograms},
		{"name", compiler.ErrProgramNameEmpty},
		{"instruments", compiler.ErrProgramNoInstruments},
		{"value", compiler.ErrInvalidOperand},
		{`conditions.rater.instrument."seed".when`, compiler.ErrInvalidOperator},
		{`conditions.rater.bogus."seed"`, compiler.ErrInvalidNamespace},
		{"something", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadErrorFormatting(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found"}
	assert.Equal(t, "E003: no CUE files found", err.Error())
	assert.Equal(t, 0, err.Line())
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	data, err := canonicalJSON(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, string(data))
}
