package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/ir"
)

func TestBuildGraphGroups(t *testing.T) {
	g := mustGraph(t, andProgram())

	groups := g.TargetGroups("logic-and")
	require.Len(t, groups, 1, "both conditions share role and namespace")
	assert.Equal(t, rater, groups[0].Role)
	assert.Equal(t, inst, groups[0].Namespace)
	require.Len(t, groups[0].Conditions, 2)
	assert.Equal(t, "instrument:seed-a", groups[0].Conditions[0].Source.Raw)
	assert.Equal(t, "instrument:seed-b", groups[0].Conditions[1].Source.Raw)

	assert.Empty(t, g.TargetGroups("seed-a"))
	assert.True(t, g.Gated("logic-and"))
	assert.False(t, g.Gated("seed-a"))
}

func TestBuildGraphGroupsByNamespace(t *testing.T) {
	spec := compiler.NewBuilder("mixed", "Mixed").
		Question("has-heat-pump", "Has heat pump", YES, NO).
		Question("heat-pump-detail", "Heat pump detail").
		When(rater, inst, "has-heat-pump", YES, "heat-pump-detail").
		When(rater, sim, "floorplan.simulation.conditioned_area", compiler.Present(), "heat-pump-detail").
		When("qa", sim, "floorplan.simulation.conditioned_area", compiler.Gt(1000), "heat-pump-detail").
		MustBuild()

	groups := mustGraph(t, spec).TargetGroups("heat-pump-detail")
	require.Len(t, groups, 3)
	assert.Equal(t, []string{inst, sim, sim}, []string{groups[0].Namespace, groups[1].Namespace, groups[2].Namespace})
	assert.Equal(t, []string{rater, rater, "qa"}, []string{groups[0].Role, groups[1].Role, groups[2].Role})
}

func TestBuildGraphModes(t *testing.T) {
	and := mustGraph(t, andProgram())
	assert.Equal(t, ModeAll, and.CombinationMode("logic-and"))
	assert.Equal(t, "all-pass", and.CombinationMode("logic-and").String())

	or := mustGraph(t, orProgram())
	assert.Equal(t, ModeOnePass, or.CombinationMode("logic-or"))
	assert.Equal(t, "one-pass", or.CombinationMode("logic-or").String())
	assert.Equal(t, ModeAll, or.CombinationMode("seed-a"), "ungated instruments default to all-pass")
}

func TestBuildGraphDependents(t *testing.T) {
	g := mustGraph(t, deepOrProgram())

	assert.Equal(t, []string{"seed-a", "seed-b"}, g.Dependents("top"))
	assert.Equal(t, []string{"seed-a", "seed-b"}, g.Dependents("instrument:top"))
	assert.Equal(t, []string{"logic-or"}, g.Dependents("seed-b"))
	assert.Empty(t, g.Dependents("logic-or"))

	data := mustGraph(t, dataProgram())
	assert.Equal(t, []string{"bedroom-ventilation"}, data.Dependents("floorplan.remrate_target.bedroom_count"))
}

func TestBuildGraphRoots(t *testing.T) {
	assert.Equal(t, []string{"top"}, mustGraph(t, deepOrProgram()).Roots())
	assert.Equal(t, []string{"home-type"}, mustGraph(t, dataProgram()).Roots())
}

func TestBuildGraphHash(t *testing.T) {
	g := mustGraph(t, andProgram())
	want, err := ir.ProgramHash(andProgram())
	require.NoError(t, err)
	assert.Equal(t, want, g.Hash())
	assert.NotEqual(t, g.Hash(), mustGraph(t, orProgram()).Hash())
}

func TestBuildGraphRejectsInvalidProgram(t *testing.T) {
	spec := andProgram()
	spec.Conditions = append(spec.Conditions, ir.Condition{
		Role:       rater,
		Namespace:  inst,
		Source:     ir.MustParseFieldPath(inst, "seed-a"),
		Predicates: []ir.Predicate{{Op: ir.OpAny}},
		Target:     "missing-measure",
	})

	g, err := BuildGraph(spec)
	assert.Nil(t, g)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "and-condition-case", ce.Program)
	require.Len(t, ce.Errors, 1)
	assert.Equal(t, compiler.ErrDanglingTarget, ce.Errors[0].Code)
	assert.Contains(t, err.Error(), "and-condition-case")
}

func TestBuildGraphRejectsNil(t *testing.T) {
	_, err := BuildGraph(nil)
	assert.True(t, IsConfigError(err))
}
