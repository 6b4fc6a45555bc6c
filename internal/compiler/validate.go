package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/axisenergy/checklist/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Program and instrument errors (E101-E109)
	ErrProgramNameEmpty      = "E101" // name is required
	ErrProgramNoInstruments  = "E102" // at least one instrument required
	ErrDuplicateInstrument   = "E103" // duplicate measure id
	ErrInvalidInstrumentType = "E104" // unknown instrument type
	ErrProgramSlugEmpty      = "E105" // slug is required
	ErrInstrumentTextEmpty   = "E106" // instrument text is required

	// Condition errors (E110-E119)
	ErrInvalidNamespace     = "E110" // unknown condition namespace
	ErrDanglingTarget       = "E111" // target measure id not in program
	ErrDanglingSource       = "E112" // instrument source not in program
	ErrInvalidOperator      = "E113" // unknown predicate operator
	ErrInvalidOperand       = "E114" // operand shape does not fit operator
	ErrResponseMismatch     = "E115" // literal not among source responses
	ErrInvalidConditionType = "E116" // bad condition type or unknown target
	ErrSelfGating           = "E117" // instrument gated on its own answer
	ErrNamespaceMismatch    = "E118" // instrument source outside instrument namespace
	ErrNoPredicates         = "E119" // condition has nothing to test
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled program against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.ProgramSpec:
		return validateProgram(spec)
	case ir.ProgramSpec:
		return validateProgram(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateProgram(spec *ir.ProgramSpec) []ValidationError {
	var errs []ValidationError

	// E105: slug is required
	if strings.TrimSpace(spec.Slug) == "" {
		errs = append(errs, ValidationError{
			Field:   "slug",
			Message: "slug is required and must be non-empty",
			Code:    ErrProgramSlugEmpty,
		})
	}

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrProgramNameEmpty,
		})
	}

	// E102: at least one instrument
	if len(spec.Instruments) == 0 {
		errs = append(errs, ValidationError{
			Field:   "instruments",
			Message: "at least one instrument is required",
			Code:    ErrProgramNoInstruments,
		})
	}

	instruments := make(map[string]ir.Instrument, len(spec.Instruments))
	for i, inst := range spec.Instruments {
		field := fmt.Sprintf("instruments[%d]", i)

		// E103: duplicate measure id
		if _, dup := instruments[inst.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate instrument id: %q", inst.ID),
				Code:    ErrDuplicateInstrument,
			})
		}
		instruments[inst.ID] = inst

		// E104: unknown type
		if !ir.ValidInstrumentTypes[inst.Type] {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("invalid instrument type %q for %q", inst.Type, inst.ID),
				Code:    ErrInvalidInstrumentType,
			})
		}

		// E106: text is required
		if strings.TrimSpace(inst.Text) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".text",
				Message: fmt.Sprintf("instrument %q has no text", inst.ID),
				Code:    ErrInstrumentTextEmpty,
			})
		}
	}

	for i, cond := range spec.Conditions {
		errs = append(errs, validateCondition(cond, fmt.Sprintf("conditions[%d]", i), instruments)...)
	}

	for _, target := range slices.Sorted(maps.Keys(spec.ConditionTypes)) {
		mode := spec.ConditionTypes[target]
		field := fmt.Sprintf("condition_types[%q]", target)

		// E116: bad mode or unknown target
		if mode != ir.ConditionTypeAllPass && mode != ir.ConditionTypeOnePass {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("condition type must be %q or %q, got %q", ir.ConditionTypeOnePass, ir.ConditionTypeAllPass, mode),
				Code:    ErrInvalidConditionType,
			})
		}
		if _, ok := instruments[target]; !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("condition type names unknown instrument %q", target),
				Code:    ErrInvalidConditionType,
			})
		}
	}

	return errs
}

func validateCondition(cond ir.Condition, field string, instruments map[string]ir.Instrument) []ValidationError {
	var errs []ValidationError

	// E110: namespace
	if !ir.ValidNamespaces[cond.Namespace] {
		errs = append(errs, ValidationError{
			Field:   field + ".namespace",
			Message: fmt.Sprintf("invalid namespace %q, must be instrument, rem, or simulation", cond.Namespace),
			Code:    ErrInvalidNamespace,
		})
	}

	// E111: target must exist
	if _, ok := instruments[cond.Target]; !ok {
		errs = append(errs, ValidationError{
			Field:   field + ".target",
			Message: fmt.Sprintf("condition activates unknown instrument %q", cond.Target),
			Code:    ErrDanglingTarget,
		})
	}

	var source *ir.Instrument
	if cond.Source.IsInstrument() {
		// E118: instrument sources live under the instrument namespace
		if cond.Namespace != ir.NamespaceInstrument {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("instrument source %q declared under namespace %q", cond.Source, cond.Namespace),
				Code:    ErrNamespaceMismatch,
			})
		}

		// E112: instrument source must exist
		if inst, ok := instruments[cond.Source.Instrument]; ok {
			source = &inst
		} else {
			errs = append(errs, ValidationError{
				Field:   field + ".source",
				Message: fmt.Sprintf("condition reads unknown instrument %q", cond.Source.Instrument),
				Code:    ErrDanglingSource,
			})
		}

		// E117: self-gating never activates
		if cond.Source.Instrument == cond.Target {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("instrument %q is gated on its own answer", cond.Target),
				Code:    ErrSelfGating,
			})
		}
	}

	// E119: nothing to test
	if len(cond.Predicates) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".predicates",
			Message: "condition has no predicates",
			Code:    ErrNoPredicates,
		})
	}

	for j, pred := range cond.Predicates {
		errs = append(errs, validatePredicate(pred, fmt.Sprintf("%s.predicates[%d]", field, j), source)...)
	}

	return errs
}

func validatePredicate(pred ir.Predicate, field string, source *ir.Instrument) []ValidationError {
	if pred.Op != ir.OpEquals && !ir.ValidOperators[pred.Op] {
		return []ValidationError{{
			Field:   field + ".op",
			Message: fmt.Sprintf("invalid operator %q, must be one of >, <, one, any, contains", pred.Op),
			Code:    ErrInvalidOperator,
		}}
	}

	if msg := operandProblem(pred); msg != "" {
		return []ValidationError{{
			Field:   field + ".operand",
			Message: msg,
			Code:    ErrInvalidOperand,
		}}
	}

	// E115: a literal the source can never hold is almost always a typo.
	if source == nil || len(source.Responses) == 0 || source.Type != ir.TypeMultipleChoice {
		return nil
	}
	var candidates []ir.IRValue
	switch pred.Op {
	case ir.OpEquals:
		candidates = []ir.IRValue{pred.Operand}
	case ir.OpOne:
		if arr, ok := pred.Operand.(ir.IRArray); ok {
			candidates = arr
		} else {
			candidates = []ir.IRValue{pred.Operand}
		}
	}
	var errs []ValidationError
	for _, c := range candidates {
		if !ir.Contains(source.Responses, c) {
			errs = append(errs, ValidationError{
				Field:   field + ".operand",
				Message: fmt.Sprintf("%q is not a response of %q", ir.Display(c), source.ID),
				Code:    ErrResponseMismatch,
			})
		}
	}
	return errs
}

// operandProblem describes why an operand does not fit its operator, or
// returns "" when it does.
func operandProblem(pred ir.Predicate) string {
	switch pred.Op {
	case ir.OpAny:
		if !ir.IsNull(pred.Operand) {
			return "any takes no operand"
		}
		return ""
	case ir.OpGreater, ir.OpLess:
		if _, ok := ir.Number(pred.Operand); !ok || ir.IsNull(pred.Operand) {
			return fmt.Sprintf("%s needs a numeric operand", pred.Op)
		}
		return ""
	}

	if ir.IsNull(pred.Operand) {
		return fmt.Sprintf("%s needs an operand", pred.Op)
	}
	switch operand := pred.Operand.(type) {
	case ir.IRObject:
		return "operand must be a scalar or list"
	case ir.IRArray:
		if pred.Op != ir.OpOne {
			return fmt.Sprintf("%s takes a scalar operand; use one for a set of values", pred.Op)
		}
		if len(operand) == 0 {
			return "one needs at least one candidate"
		}
	}
	return ""
}
