package engine

import (
	"fmt"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/ir"
)

// Mode is how a target's conditions combine.
type Mode int

const (
	// ModeAll activates when every condition passes (the default).
	ModeAll Mode = iota
	// ModeOnePass activates when any one condition passes.
	ModeOnePass
)

func (m Mode) String() string {
	if m == ModeOnePass {
		return ir.ConditionTypeOnePass
	}
	return ir.ConditionTypeAllPass
}

// ConditionGroup is the set of conditions on one target that share a role
// and namespace.
type ConditionGroup struct {
	Role       string
	Namespace  string
	Conditions []ir.Condition
}

type groupKey struct {
	role      string
	namespace string
}

// Graph is the compiled dependency structure of one program. It is built
// once per program and read-only afterwards.
type Graph struct {
	spec       *ir.ProgramSpec
	hash       string
	groups     map[string][]ConditionGroup
	modes      map[string]Mode
	dependents map[string][]string
	roots      []string
}

// BuildGraph validates spec and indexes its conditions by target.
// A program with any validation error is rejected with a *ConfigError.
func BuildGraph(spec *ir.ProgramSpec) (*Graph, error) {
	if spec == nil {
		return nil, &ConfigError{Errors: []compiler.ValidationError{{
			Field: "program", Message: "program is nil", Code: compiler.ErrUnsupportedIRType,
		}}}
	}
	if errs := compiler.Validate(spec); len(errs) > 0 {
		return nil, &ConfigError{Program: spec.Slug, Errors: errs}
	}

	hash, err := ir.ProgramHash(spec)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", spec.Slug, err)
	}

	g := &Graph{
		spec:       spec,
		hash:       hash,
		groups:     make(map[string][]ConditionGroup),
		modes:      make(map[string]Mode),
		dependents: make(map[string][]string),
	}

	groupIndex := make(map[string]map[groupKey]int)
	for _, cond := range spec.Conditions {
		idx, ok := groupIndex[cond.Target]
		if !ok {
			idx = make(map[groupKey]int)
			groupIndex[cond.Target] = idx
		}
		key := groupKey{role: cond.Role, namespace: cond.Namespace}
		i, ok := idx[key]
		if !ok {
			i = len(g.groups[cond.Target])
			idx[key] = i
			g.groups[cond.Target] = append(g.groups[cond.Target], ConditionGroup{
				Role:      cond.Role,
				Namespace: cond.Namespace,
			})
		}
		g.groups[cond.Target][i].Conditions = append(g.groups[cond.Target][i].Conditions, cond)

		g.dependents[cond.Source.Raw] = appendUnique(g.dependents[cond.Source.Raw], cond.Target)
	}

	for target, mode := range spec.ConditionTypes {
		if mode == ir.ConditionTypeOnePass {
			g.modes[target] = ModeOnePass
		}
	}

	for _, inst := range spec.Instruments {
		if len(g.groups[inst.ID]) == 0 {
			g.roots = append(g.roots, inst.ID)
		}
	}

	return g, nil
}

// Spec returns the program the graph was built from.
func (g *Graph) Spec() *ir.ProgramSpec { return g.spec }

// Hash returns the program's content hash.
func (g *Graph) Hash() string { return g.hash }

// TargetGroups returns the condition groups gating measureID, in
// declaration order. Ungated instruments have none.
func (g *Graph) TargetGroups(measureID string) []ConditionGroup {
	return g.groups[measureID]
}

// CombinationMode returns how measureID's conditions combine.
func (g *Graph) CombinationMode(measureID string) Mode {
	return g.modes[measureID]
}

// Gated reports whether measureID has any condition.
func (g *Graph) Gated(measureID string) bool {
	return len(g.groups[measureID]) > 0
}

// Dependents returns the targets gated on source. Instrument sources are
// named instrument:<measure_id>; a bare measure id is accepted too.
func (g *Graph) Dependents(source string) []string {
	if deps, ok := g.dependents[source]; ok {
		return deps
	}
	return g.dependents[ir.InstrumentPrefix+source]
}

// Roots returns the ungated instruments in checklist order.
func (g *Graph) Roots() []string {
	return g.roots
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
