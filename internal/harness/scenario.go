package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSubjectID is used when a scenario does not name its subject.
const DefaultSubjectID = "subject-1"

// Scenario defines a checklist test scenario.
// A scenario answers instruments for one subject under one program and
// asserts on the resulting trace and final store state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Programs is a directory of CUE program files, relative to the
	// scenario file. Empty means the embedded program catalogue.
	Programs string `yaml:"programs,omitempty"`

	// Program is the slug of the program under test.
	Program string `yaml:"program"`

	SubjectID string `yaml:"subject_id,omitempty"`

	// Subject is the subject's data document (REM and simulation data).
	Subject map[string]any `yaml:"subject,omitempty"`

	// IDPrefix prefixes the evaluation ids recorded during the run.
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// MaxSweeps overrides the activation sweep bound when positive.
	MaxSweeps int `yaml:"max_sweeps,omitempty"`

	// Setup answers are imported before the flow without the eligibility
	// check, keyed by measure id.
	Setup map[string]any `yaml:"setup,omitempty"`

	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one step of the main flow. Exactly one of Answer, Subject and
// Evaluate is set.
type FlowStep struct {
	// Answer is the measure id to answer, with either Value (typed, as
	// decoded from YAML) or Text (parsed against the instrument type).
	Answer string `yaml:"answer,omitempty"`
	Value  any    `yaml:"value,omitempty"`
	Text   string `yaml:"text,omitempty"`

	// Subject replaces the subject document.
	Subject map[string]any `yaml:"subject,omitempty"`

	// Evaluate re-evaluates without changing anything.
	Evaluate bool `yaml:"evaluate,omitempty"`

	// Expect is checked against the evaluation that follows the step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

func (s FlowStep) kind() string {
	switch {
	case s.Answer != "":
		return "answer"
	case s.Subject != nil:
		return "subject"
	case s.Evaluate:
		return "evaluate"
	}
	return ""
}

// ExpectClause specifies the checklist expected after a step.
type ExpectClause struct {
	// Active is the exact active set in checklist order. An empty list
	// expects nothing active; omit it to skip the check.
	Active []string `yaml:"active,omitempty"`

	// Inactive lists measures that must not be active.
	Inactive []string `yaml:"inactive,omitempty"`

	// Error expects the answer to be rejected with a message containing
	// this text.
	Error string `yaml:"error,omitempty"`

	Converged *bool `yaml:"converged,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of type Event for Measure exists
	// - "trace_order": Measures first appear in this order
	// - "trace_count": exactly Count events of type Event (for Measure, if set)
	// - "final_state": query Table and verify expected values
	Type string `yaml:"type"`

	// Event is the trace event type. Default: activate.
	Event string `yaml:"event,omitempty"`

	Measure string `yaml:"measure,omitempty"`

	// Measures is the expected order (used by trace_order).
	Measures []string `yaml:"measures,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// event returns the assertion's event type with the default applied.
func (a Assertion) event() string {
	if a.Event == "" {
		return EventActivate
	}
	return a.Event
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The programs directory is resolved against the working directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the programs directory relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so that a
// typo like "assertion:" fails loudly instead of skipping checks.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve before validation so the existence check sees the real path.
	if scenario.Programs != "" && !filepath.IsAbs(scenario.Programs) && basePath != "" {
		scenario.Programs = filepath.Join(basePath, scenario.Programs)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Program == "" {
		return fmt.Errorf("program is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxSweeps < 0 {
		return fmt.Errorf("max_sweeps must be non-negative")
	}

	if s.Programs != "" {
		info, err := os.Stat(s.Programs)
		if err != nil {
			return fmt.Errorf("programs directory not found: %s", s.Programs)
		}
		if !info.IsDir() {
			return fmt.Errorf("programs path is not a directory: %s", s.Programs)
		}
	}

	for id, v := range s.Setup {
		if v == nil {
			return fmt.Errorf("setup[%s]: value is required", id)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step FlowStep) error {
	set := 0
	if step.Answer != "" {
		set++
	}
	if step.Subject != nil {
		set++
	}
	if step.Evaluate {
		set++
	}
	if set != 1 {
		return fmt.Errorf("flow[%d]: exactly one of answer, subject or evaluate is required", index)
	}

	if step.kind() == "answer" {
		if (step.Value == nil) == (step.Text == "") {
			return fmt.Errorf("flow[%d]: answer %s needs exactly one of value or text", index, step.Answer)
		}
	} else {
		if step.Value != nil || step.Text != "" {
			return fmt.Errorf("flow[%d]: value and text are only valid on answer steps", index)
		}
		if step.Expect != nil && step.Expect.Error != "" {
			return fmt.Errorf("flow[%d].expect: error is only valid on answer steps", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.event() {
	case EventAnswer, EventRejected, EventActivate, EventDeactivate:
	default:
		return fmt.Errorf("assertions[%d]: unknown event type %q", index, a.Event)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Measure == "" {
			return fmt.Errorf("assertions[%d]: measure is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Measures) == 0 {
			return fmt.Errorf("assertions[%d]: measures list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
