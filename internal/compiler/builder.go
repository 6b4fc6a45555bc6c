package compiler

import (
	"errors"
	"fmt"

	"github.com/axisenergy/checklist/internal/ir"
)

// Test is an operator test for Builder.When. A bare literal passed to When
// is an equality test; use the helpers below for everything else.
type Test struct {
	Op      ir.Operator
	Operand any
}

// Gt passes when the source is numerically greater than n.
func Gt(n any) Test { return Test{Op: ir.OpGreater, Operand: n} }

// Lt passes when the source is numerically less than n.
func Lt(n any) Test { return Test{Op: ir.OpLess, Operand: n} }

// OneOf passes when the source holds any of the candidates.
func OneOf(candidates ...any) Test { return Test{Op: ir.OpOne, Operand: candidates} }

// Present passes when the source holds any value at all.
func Present() Test { return Test{Op: ir.OpAny} }

// Has passes when the source collection (or string) contains v.
func Has(v any) Test { return Test{Op: ir.OpContains, Operand: v} }

// Builder assembles a ProgramSpec in Go. Literals and enum values are
// canonicalized through ir.FromGo as they are added, so enum constants and
// their string values are interchangeable.
//
//	spec, err := compiler.NewBuilder("and-condition-case", "AND case").
//		Question("seed-a", "Seed A", "Yes", "No").
//		Question("logic-and", "Logic AND").
//		When(ir.DefaultRole, ir.NamespaceInstrument, "seed-a", "Yes", "logic-and").
//		Build()
type Builder struct {
	spec   ir.ProgramSpec
	merger *conditionMerger
	errs   []error
}

// NewBuilder starts a program.
func NewBuilder(slug, name string) *Builder {
	return &Builder{
		spec:   ir.ProgramSpec{Slug: slug, Name: name},
		merger: newConditionMerger(),
	}
}

// Description sets the program description.
func (b *Builder) Description(text string) *Builder {
	b.spec.Description = text
	return b
}

// Instrument appends a fully specified instrument.
func (b *Builder) Instrument(inst ir.Instrument) *Builder {
	if inst.Role == "" {
		inst.Role = ir.DefaultRole
	}
	if inst.Type == "" {
		inst.Type = ir.TypeOpen
	}
	b.spec.Instruments = append(b.spec.Instruments, inst)
	return b
}

// Question appends an instrument. With responses it is multiple choice,
// without it is an open question.
func (b *Builder) Question(id, text string, responses ...any) *Builder {
	inst := ir.Instrument{ID: id, Text: text, Type: ir.TypeOpen}
	if len(responses) > 0 {
		inst.Type = ir.TypeMultipleChoice
		for _, r := range responses {
			v, err := ir.FromGo(r)
			if err != nil {
				b.errs = append(b.errs, fmt.Errorf("instrument %q response: %w", id, err))
				continue
			}
			inst.Responses = append(inst.Responses, v)
		}
	}
	return b.Instrument(inst)
}

// When adds a rule: targets activate when source (read under role and
// namespace) passes test. test is a literal or a Test.
func (b *Builder) When(role, namespace, source string, test any, targets ...string) *Builder {
	path, err := ir.ParseFieldPath(namespace, source)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	pred, err := predicateFor(test)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("condition on %q: %w", source, err))
		return b
	}
	for _, target := range targets {
		b.merger.add(role, namespace, path, target, pred)
	}
	return b
}

// OnePass marks targets as activated by any one passing condition.
func (b *Builder) OnePass(targets ...string) *Builder {
	if b.spec.ConditionTypes == nil {
		b.spec.ConditionTypes = make(map[string]string)
	}
	for _, t := range targets {
		b.spec.ConditionTypes[t] = ir.ConditionTypeOnePass
	}
	return b
}

// Build validates and returns the program. All conversion and validation
// errors are joined into the returned error.
func (b *Builder) Build() (*ir.ProgramSpec, error) {
	spec := b.spec
	spec.Instruments = append([]ir.Instrument(nil), b.spec.Instruments...)
	for _, cond := range b.merger.conditions() {
		cond.Predicates = append([]ir.Predicate(nil), cond.Predicates...)
		spec.Conditions = append(spec.Conditions, cond)
	}

	errs := append([]error(nil), b.errs...)
	for _, verr := range Validate(&spec) {
		errs = append(errs, verr)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &spec, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or for programs known to be valid.
func (b *Builder) MustBuild() *ir.ProgramSpec {
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}

func predicateFor(test any) (ir.Predicate, error) {
	t, ok := test.(Test)
	if !ok {
		operand, err := ir.FromGo(test)
		if err != nil {
			return ir.Predicate{}, err
		}
		return ir.Predicate{Op: ir.OpEquals, Operand: operand}, nil
	}

	pred := ir.Predicate{Op: t.Op}
	if t.Operand != nil {
		operand, err := ir.FromGo(t.Operand)
		if err != nil {
			return ir.Predicate{}, err
		}
		pred.Operand = operand
	}
	return pred, nil
}
