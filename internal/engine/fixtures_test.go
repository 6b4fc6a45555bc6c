package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/compiler"
	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

const (
	rater = ir.DefaultRole
	inst  = ir.NamespaceInstrument
	rem   = ir.NamespaceRem
	sim   = ir.NamespaceSimulation
)

type yesNo string

func (y yesNo) EnumValue() string { return string(y) }

const (
	YES yesNo = "Yes"
	NO  yesNo = "No"
)

func andProgram() *ir.ProgramSpec {
	return compiler.NewBuilder("and-condition-case", "Instrument AND condition case").
		Question("seed-a", "Seed A", YES, NO).
		Question("seed-b", "Seed B", YES, NO).
		Question("logic-and", "Logic AND").
		When(rater, inst, "seed-a", YES, "logic-and").
		When(rater, inst, "seed-b", "Yes", "logic-and").
		MustBuild()
}

func orProgram() *ir.ProgramSpec {
	return compiler.NewBuilder("or-condition-case", "Instrument OR condition case").
		Question("seed-a", "Seed A", YES, NO).
		Question("seed-b", "Seed B", YES, NO).
		Question("logic-or", "Logic OR").
		When(rater, inst, "seed-a", YES, "logic-or").
		When(rater, inst, "seed-b", YES, "logic-or").
		OnePass("logic-or").
		MustBuild()
}

func deepOrProgram() *ir.ProgramSpec {
	return compiler.NewBuilder("or-deep-condition-case", "Instrument OR deep condition case").
		Question("top", "Top", "A", "B").
		Question("seed-a", "Seed A", YES, NO).
		Question("seed-b", "Seed B", YES, NO).
		Question("logic-or", "Logic OR").
		When(rater, inst, "top", "A", "seed-a").
		When(rater, inst, "top", "B", "seed-b").
		When(rater, inst, "seed-a", YES, "logic-or").
		When(rater, inst, "seed-b", YES, "logic-or").
		OnePass("logic-or").
		MustBuild()
}

func dataProgram() *ir.ProgramSpec {
	return compiler.NewBuilder("data-conditions", "REM and simulation conditions").
		Question("home-type", "Home type").
		Question("bedroom-ventilation", "Bedroom ventilation").
		Question("heat-pump-water-heater", "Heat pump water heater").
		Question("simulation-notes", "Simulation notes").
		When(rater, rem, "floorplan.remrate_target.bedroom_count", compiler.Gt(2), "bedroom-ventilation").
		When(rater, sim, "floorplan.simulation.water_heaters.style", compiler.OneOf("ashp", "gshp"), "heat-pump-water-heater").
		When(rater, sim, "floorplan.simulation.conditioned_area", compiler.Present(), "simulation-notes").
		MustBuild()
}

func mustGraph(t *testing.T, spec *ir.ProgramSpec) *Graph {
	t.Helper()
	g, err := BuildGraph(spec)
	require.NoError(t, err)
	return g
}

func answers(pairs ...any) subject.Answers {
	a := subject.Answers{}
	for i := 0; i+1 < len(pairs); i += 2 {
		a[pairs[i].(string)] = ir.MustFromGo(pairs[i+1])
	}
	return a
}

// home builds a subject document with the given simulation (nil for none).
func home(bedrooms int, simulation ir.IRValue) subject.Node {
	if simulation == nil {
		simulation = ir.IRNull{}
	}
	return subject.NewObjectNode(ir.IRObject{
		"floorplan": ir.IRObject{
			"remrate_target": ir.IRObject{"bedroom_count": ir.IRInt(int64(bedrooms))},
			"simulation":     simulation,
		},
	})
}

func heaters(styles ...string) ir.IRObject {
	arr := ir.IRArray{}
	for _, s := range styles {
		arr = append(arr, ir.IRObject{"style": ir.IRString(s)})
	}
	return ir.IRObject{"water_heaters": arr}
}

// chainProgram gates q1 on q0, q2 on q1, ... so activating the last link
// takes n sweeps.
func chainProgram(n int) *ir.ProgramSpec {
	b := compiler.NewBuilder("chain", "Chain").Question("q0", "Q0")
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("q%d", i)
		b.Question(id, id).When(rater, inst, fmt.Sprintf("q%d", i-1), compiler.Present(), id)
	}
	return b.MustBuild()
}

func chainAnswers(n int) subject.Answers {
	a := subject.Answers{}
	for i := 0; i <= n; i++ {
		a[fmt.Sprintf("q%d", i)] = ir.IRString("done")
	}
	return a
}
