package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one answer"
program: or-deep-condition-case
flow:
  - answer: top
    value: A
assertions:
  - type: trace_contains
    measure: seed-a
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario), "")
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "or-deep-condition-case", s.Program)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "top", s.Flow[0].Answer)
	assert.Equal(t, "A", s.Flow[0].Value)
	assert.Equal(t, EventActivate, s.Assertions[0].event())
}

func TestParseScenario_UnknownField(t *testing.T) {
	data := minimalScenario + "assertion: []\n"
	_, err := ParseScenario([]byte(data), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_EmptyActiveListIsKept(t *testing.T) {
	data := `
name: empty
description: "nothing active"
program: or-deep-condition-case
flow:
  - evaluate: true
    expect:
      active: []
assertions:
  - type: trace_count
    count: 1
`
	s, err := ParseScenario([]byte(data), "")
	require.NoError(t, err)
	require.NotNil(t, s.Flow[0].Expect)
	assert.NotNil(t, s.Flow[0].Expect.Active)
	assert.Empty(t, s.Flow[0].Expect.Active)
}

func TestParseScenario_ResolvesProgramsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "programs"), 0o755))

	data := minimalScenario + "programs: programs\n"
	s, err := ParseScenario([]byte(data), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "programs"), s.Programs)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/no-such-file.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenarioWithBasePath(f, "testdata")
			assert.NoError(t, err)
		})
	}
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "s",
			Description: "d",
			Program:     "p",
			Flow:        []FlowStep{{Answer: "a", Value: "x"}},
			Assertions:  []Assertion{{Type: AssertTraceCount}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"valid", func(*Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing program", func(s *Scenario) { s.Program = "" }, "program is required"},
		{"empty flow", func(s *Scenario) { s.Flow = nil }, "flow list is required"},
		{"empty assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"negative sweeps", func(s *Scenario) { s.MaxSweeps = -1 }, "max_sweeps must be non-negative"},
		{"missing programs dir", func(s *Scenario) { s.Programs = "testdata/no-such-dir" }, "programs directory not found"},
		{"programs dir is a file", func(s *Scenario) { s.Programs = "testdata/deep_or_chain.yaml" }, "not a directory"},
		{"null setup value", func(s *Scenario) { s.Setup = map[string]any{"a": nil} }, "setup[a]: value is required"},
		{"empty step", func(s *Scenario) { s.Flow = []FlowStep{{}} }, "exactly one of answer, subject or evaluate"},
		{"two step kinds", func(s *Scenario) {
			s.Flow = []FlowStep{{Answer: "a", Value: "x", Evaluate: true}}
		}, "exactly one of answer, subject or evaluate"},
		{"answer without value", func(s *Scenario) {
			s.Flow = []FlowStep{{Answer: "a"}}
		}, "needs exactly one of value or text"},
		{"answer with value and text", func(s *Scenario) {
			s.Flow = []FlowStep{{Answer: "a", Value: "x", Text: "x"}}
		}, "needs exactly one of value or text"},
		{"value on evaluate", func(s *Scenario) {
			s.Flow = []FlowStep{{Evaluate: true, Value: "x"}}
		}, "only valid on answer steps"},
		{"error on subject step", func(s *Scenario) {
			s.Flow = []FlowStep{{Subject: map[string]any{}, Expect: &ExpectClause{Error: "x"}}}
		}, "error is only valid on answer steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"missing type", Assertion{}, "type is required"},
		{"unknown type", Assertion{Type: "trace_magic"}, "unknown assertion type"},
		{"unknown event", Assertion{Type: AssertTraceCount, Event: "invocation"}, "unknown event type"},
		{"contains without measure", Assertion{Type: AssertTraceContains}, "measure is required"},
		{"contains ok", Assertion{Type: AssertTraceContains, Measure: "a"}, ""},
		{"order without measures", Assertion{Type: AssertTraceOrder}, "measures list is required"},
		{"negative count", Assertion{Type: AssertTraceCount, Count: -1}, "count must be non-negative"},
		{"count zero ok", Assertion{Type: AssertTraceCount, Event: EventDeactivate}, ""},
		{"state without table", Assertion{Type: AssertFinalState, Expect: map[string]any{"a": 1}}, "table is required"},
		{"state without expect", Assertion{Type: AssertFinalState, Table: "answers"}, "expect is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
