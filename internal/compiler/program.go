package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"

	"github.com/axisenergy/checklist/internal/ir"
)

// CompileProgram parses a CUE value into a ProgramSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: "eto-2024": { ... }`)
//	spec, err := CompileProgram(v.LookupPath(cue.ParsePath(`program."eto-2024"`)))
//
// The value is unified with the #Program schema before extraction, so
// misspelled fields and wrongly shaped rules fail here with a position.
// Semantic checks (dangling targets, operators, operands) are left to Validate.
func CompileProgram(v cue.Value) (*ir.ProgramSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema, err := programSchema(v.Context())
	if err != nil {
		return nil, err
	}
	unified := schema.Unify(v)
	if err := unified.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ProgramSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Slug = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	spec.Name, err = requiredString(unified, "name")
	if err != nil {
		return nil, err
	}
	spec.Description, _, err = optionalString(unified, "description")
	if err != nil {
		return nil, err
	}

	spec.Instruments, err = parseInstruments(unified)
	if err != nil {
		return nil, err
	}

	spec.Conditions, err = parseConditions(unified)
	if err != nil {
		return nil, err
	}

	spec.ConditionTypes, err = parseConditionTypes(unified)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseInstruments extracts instruments in declaration order.
func parseInstruments(v cue.Value) ([]ir.Instrument, error) {
	listVal := v.LookupPath(cue.ParsePath("instruments"))
	if !listVal.Exists() {
		return nil, &CompileError{
			Field:   "instruments",
			Message: "instruments is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var instruments []ir.Instrument
	for iter.Next() {
		inst, err := parseInstrument(iter.Value())
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

func parseInstrument(v cue.Value) (ir.Instrument, error) {
	var inst ir.Instrument
	var err error

	if inst.ID, err = requiredString(v, "id"); err != nil {
		return inst, err
	}
	if inst.Text, err = requiredString(v, "text"); err != nil {
		return inst, err
	}
	if inst.Type, err = requiredString(v, "type"); err != nil {
		return inst, err
	}
	if inst.Section, _, err = optionalString(v, "section"); err != nil {
		return inst, err
	}
	if inst.Help, _, err = optionalString(v, "help"); err != nil {
		return inst, err
	}

	role, ok, err := optionalString(v, "role")
	if err != nil {
		return inst, err
	}
	inst.Role = ir.DefaultRole
	if ok && role != "" {
		inst.Role = role
	}

	if optVal := v.LookupPath(cue.ParsePath("optional")); optVal.Exists() {
		inst.Optional, err = optVal.Bool()
		if err != nil {
			return inst, formatCUEError(err)
		}
	}

	if respVal := v.LookupPath(cue.ParsePath("responses")); respVal.Exists() {
		iter, err := respVal.List()
		if err != nil {
			return inst, formatCUEError(err)
		}
		for iter.Next() {
			r, err := cueToIR(iter.Value())
			if err != nil {
				return inst, err
			}
			inst.Responses = append(inst.Responses, r)
		}
	}

	return inst, nil
}

// parseConditions walks conditions.<role>.<namespace>.<source> and merges
// every rule sharing (role, namespace, source, target) into one Condition.
func parseConditions(v cue.Value) ([]ir.Condition, error) {
	condVal := v.LookupPath(cue.ParsePath("conditions"))
	if !condVal.Exists() {
		return nil, nil // conditions are optional
	}

	m := newConditionMerger()

	roles, err := condVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for roles.Next() {
		role := roles.Selector().Unquoted()
		namespaces, err := roles.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for namespaces.Next() {
			namespace := namespaces.Selector().Unquoted()
			sources, err := namespaces.Value().Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for sources.Next() {
				raw := sources.Selector().Unquoted()
				field := fmt.Sprintf("conditions.%s.%s.%q", role, namespace, raw)

				source, err := ir.ParseFieldPath(namespace, raw)
				if err != nil {
					return nil, &CompileError{Field: field, Message: err.Error(), Pos: sources.Value().Pos()}
				}

				rules, err := sources.Value().List()
				if err != nil {
					return nil, formatCUEError(err)
				}
				for rules.Next() {
					pred, targets, err := parseRule(rules.Value(), field)
					if err != nil {
						return nil, err
					}
					for _, target := range targets {
						m.add(role, namespace, source, target, pred)
					}
				}
			}
		}
	}

	return m.conditions(), nil
}

// parseRule extracts one {when, activates} rule.
func parseRule(v cue.Value, field string) (ir.Predicate, []string, error) {
	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return ir.Predicate{}, nil, &CompileError{
			Field:   field + ".when",
			Message: "when is required",
			Pos:     v.Pos(),
		}
	}
	pred, err := parseTest(whenVal, field+".when")
	if err != nil {
		return ir.Predicate{}, nil, err
	}

	iter, err := v.LookupPath(cue.ParsePath("activates")).List()
	if err != nil {
		return ir.Predicate{}, nil, formatCUEError(err)
	}
	var targets []string
	for iter.Next() {
		target, err := iter.Value().String()
		if err != nil {
			return ir.Predicate{}, nil, formatCUEError(err)
		}
		targets = append(targets, target)
	}
	return pred, targets, nil
}

// parseTest reads a when clause: a bare literal is an equality test, a list
// is an operator tuple [op] or [op, operand].
func parseTest(v cue.Value, field string) (ir.Predicate, error) {
	if v.IncompleteKind() != cue.ListKind {
		operand, err := cueToIR(v)
		if err != nil {
			return ir.Predicate{}, err
		}
		return ir.Predicate{Op: ir.OpEquals, Operand: operand}, nil
	}

	iter, err := v.List()
	if err != nil {
		return ir.Predicate{}, formatCUEError(err)
	}
	var parts []cue.Value
	for iter.Next() {
		parts = append(parts, iter.Value())
	}
	if len(parts) == 0 || len(parts) > 2 {
		return ir.Predicate{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("operator tuple must be [op] or [op, operand], got %d elements", len(parts)),
			Pos:     v.Pos(),
		}
	}

	op, err := parts[0].String()
	if err != nil {
		return ir.Predicate{}, formatCUEError(err)
	}
	pred := ir.Predicate{Op: ir.Operator(op)}
	if len(parts) == 2 {
		pred.Operand, err = cueToIR(parts[1])
		if err != nil {
			return ir.Predicate{}, err
		}
	}
	return pred, nil
}

// parseConditionTypes extracts target -> combination mode.
func parseConditionTypes(v cue.Value) (map[string]string, error) {
	typesVal := v.LookupPath(cue.ParsePath("condition_types"))
	if !typesVal.Exists() {
		return nil, nil
	}

	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	types := make(map[string]string)
	for iter.Next() {
		mode, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		types[iter.Selector().Unquoted()] = mode
	}
	return types, nil
}

// cueToIR converts a concrete CUE value to an IRValue.
func cueToIR(v cue.Value) (ir.IRValue, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.FromGo(s)
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.FromGo(f)
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("expected a concrete string, number, bool or list, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// requiredString returns the concrete string at field, applying defaults.
func requiredString(v cue.Value, field string) (string, error) {
	s, ok, err := optionalString(v, field)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return "", false, nil
	}
	if d, ok := val.Default(); ok {
		val = d
	}
	if !val.IsConcrete() {
		return "", false, nil
	}
	s, err := val.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}
