package ir

// ProgramSpec is a compiled certification program: its checklist
// instruments in display order and the conditions that gate them.
//
// A ProgramSpec is immutable once compiled. Engines and registries share it
// read-only for the life of the process.
type ProgramSpec struct {
	Slug           string            `json:"slug"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Instruments    []Instrument      `json:"instruments"`
	Conditions     []Condition       `json:"conditions,omitempty"`
	ConditionTypes map[string]string `json:"condition_types,omitempty"` // target measure id -> one-pass | all-pass
}

// Instrument is one checklist question (measure).
type Instrument struct {
	ID        string    `json:"id"` // measure_id slug, stable across program versions
	Text      string    `json:"text"`
	Type      string    `json:"type"`
	Optional  bool      `json:"optional,omitempty"`
	Section   string    `json:"section,omitempty"`
	Role      string    `json:"role,omitempty"`
	Help      string    `json:"help,omitempty"`
	Responses []IRValue `json:"responses,omitempty"` // suggested responses, ordered
}

// Instrument types.
const (
	TypeOpen            = "open"
	TypeFloat           = "float"
	TypeInteger         = "integer"
	TypeDate            = "date"
	TypeCascadingSelect = "cascading-select"
	TypeMultipleChoice  = "multiple-choice"
)

// ValidInstrumentTypes defines allowed instrument types.
var ValidInstrumentTypes = map[string]bool{
	TypeOpen:            true,
	TypeFloat:           true,
	TypeInteger:         true,
	TypeDate:            true,
	TypeCascadingSelect: true,
	TypeMultipleChoice:  true,
}

// DefaultRole is the owner role assumed when a program does not name one.
const DefaultRole = "rater"

// Condition namespaces.
const (
	NamespaceInstrument = "instrument"
	NamespaceRem        = "rem"
	NamespaceSimulation = "simulation"
)

// ValidNamespaces defines the field namespaces conditions may read from.
var ValidNamespaces = map[string]bool{
	NamespaceInstrument: true,
	NamespaceRem:        true,
	NamespaceSimulation: true,
}

// Condition types (combination modes) for instrument_condition_types.
const (
	ConditionTypeAllPass = "all-pass"
	ConditionTypeOnePass = "one-pass"
)

// Condition gates one target instrument on one source field.
//
// Predicates are alternatives: a source passes when any of them passes.
// Rules declared separately for the same (role, namespace, source, target)
// are merged into a single Condition by the compiler, because one field
// cannot hold two different values at once.
type Condition struct {
	Role       string      `json:"role"`
	Namespace  string      `json:"namespace"`
	Source     FieldPath   `json:"source"`
	Predicates []Predicate `json:"predicates"`
	Target     string      `json:"target"`
}

// Predicate is a single test applied to a resolved source value.
type Predicate struct {
	Op      Operator `json:"op"`
	Operand IRValue  `json:"operand,omitempty"`
}

// Operator names a predicate test.
type Operator string

// Predicate operators.
const (
	OpEquals   Operator = "eq"
	OpGreater  Operator = ">"
	OpLess     Operator = "<"
	OpOne      Operator = "one"
	OpAny      Operator = "any"
	OpContains Operator = "contains"
)

// ValidOperators defines the operators accepted in operator tuples.
// OpEquals is implied by a bare literal and is not spelled in tuples.
var ValidOperators = map[Operator]bool{
	OpGreater:  true,
	OpLess:     true,
	OpOne:      true,
	OpAny:      true,
	OpContains: true,
}

// InstrumentByID returns the instrument with the given measure id.
func (p *ProgramSpec) InstrumentByID(id string) (Instrument, bool) {
	for _, inst := range p.Instruments {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instrument{}, false
}

// MeasureIDs returns instrument ids in declaration order.
func (p *ProgramSpec) MeasureIDs() []string {
	ids := make([]string, len(p.Instruments))
	for i, inst := range p.Instruments {
		ids[i] = inst.ID
	}
	return ids
}

// Answer is one recorded checklist answer.
type Answer struct {
	SubjectID  string  `json:"subject_id"`
	Program    string  `json:"program"`
	MeasureID  string  `json:"measure_id"`
	Value      IRValue `json:"value"`
	Seq        int64   `json:"seq"` // Logical clock, never wall time
	RecordedBy string  `json:"recorded_by,omitempty"`
}

// Evaluation is a stored activation snapshot: which instruments were active
// for a subject given the answers recorded up to Seq.
//
// ProgramHash and AnswersHash tie the snapshot to the exact program revision
// and answer state that produced it, so a later re-evaluation can be checked
// against it.
type Evaluation struct {
	ID            string   `json:"id"` // UUIDv7
	SubjectID     string   `json:"subject_id"`
	Program       string   `json:"program"`
	ProgramHash   string   `json:"program_hash"`
	AnswersHash   string   `json:"answers_hash"`
	Active        []string `json:"active"`
	Sweeps        int      `json:"sweeps"`
	Converged     bool     `json:"converged"`
	Seq           int64    `json:"seq"`
	EngineVersion string   `json:"engine_version"`
	IRVersion     string   `json:"ir_version"`
}
