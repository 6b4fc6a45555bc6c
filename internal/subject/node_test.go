package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axisenergy/checklist/internal/ir"
)

type style string

func (s style) EnumValue() string { return string(s) }

type waterHeater struct {
	Style style   `json:"style"`
	Tank  float64 `json:"tank_size"`
}

type simulation struct {
	WaterHeaters []waterHeater `json:"water_heaters"`
	Notes        []string      `json:"notes"`
}

type remData struct {
	BedroomCount int `json:"bedroom_count"`
}

type floorplan struct {
	Simulation    *simulation `json:"simulation"`
	RemrateTarget *remData    `json:"remrate_target"`
	Hidden        string      `json:"-"`
	Untagged      string
}

type home struct {
	Floorplan floorplan `json:"floorplan"`
}

func TestStructNodeWalk(t *testing.T) {
	h := home{Floorplan: floorplan{
		Simulation: &simulation{WaterHeaters: []waterHeater{
			{Style: "ashp", Tank: 50},
			{Style: "conventional", Tank: 40},
		}},
		RemrateTarget: &remData{BedroomCount: 3},
		Untagged:      "x",
	}}
	root := NewStructNode(&h)
	require.NotNil(t, root)

	fp, err := root.Attr("floorplan")
	require.NoError(t, err)
	fpNode, ok := fp.(Node)
	require.True(t, ok, "nested struct reads as a Node, got %T", fp)

	rem, err := fpNode.Attr("remrate_target")
	require.NoError(t, err)
	count, err := rem.(Node).Attr("bedroom_count")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	sim, err := fpNode.Attr("simulation")
	require.NoError(t, err)
	heaters, err := sim.(Node).Attr("water_heaters")
	require.NoError(t, err)
	nodes, ok := heaters.([]Node)
	require.True(t, ok, "slice of structs reads as []Node, got %T", heaters)
	require.Len(t, nodes, 2)

	s, err := nodes[0].Attr("style")
	require.NoError(t, err)
	assert.Equal(t, style("ashp"), s)

	untagged, err := fpNode.Attr("Untagged")
	require.NoError(t, err)
	assert.Equal(t, "x", untagged)
}

func TestStructNodeNilRelations(t *testing.T) {
	root := NewStructNode(floorplan{})

	sim, err := root.Attr("simulation")
	require.NoError(t, err)
	assert.Nil(t, sim)

	assert.Nil(t, NewStructNode((*floorplan)(nil)))
	assert.Nil(t, NewStructNode(42))
}

func TestStructNodeNilReceiver(t *testing.T) {
	var n Node = NewStructNode((*home)(nil))

	v, err := n.Attr("floorplan")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStructNodeUnknownAttr(t *testing.T) {
	root := NewStructNode(floorplan{})

	for _, name := range []string{"missing", "Hidden"} {
		_, err := root.Attr(name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestStructNodeNilSliceIsNil(t *testing.T) {
	sim := NewStructNode(simulation{})
	v, err := sim.Attr("notes")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestObjectNode(t *testing.T) {
	node := NewObjectNode(ir.IRObject{
		"floorplan": ir.IRObject{
			"simulation": ir.IRNull{},
			"remrate_target": ir.IRObject{"bedroom_count": ir.IRInt(3)},
		},
		"water_heaters": ir.IRArray{
			ir.IRObject{"style": ir.IRString("ashp")},
			ir.IRObject{"style": ir.IRString("conventional")},
		},
		"tags": ir.IRArray{ir.IRString("a"), ir.IRString("b")},
	})

	fp, err := node.Attr("floorplan")
	require.NoError(t, err)
	sim, err := fp.(Node).Attr("simulation")
	require.NoError(t, err)
	assert.Nil(t, sim, "null reads as nil")

	heaters, err := node.Attr("water_heaters")
	require.NoError(t, err)
	assert.Len(t, heaters, 2)
	assert.IsType(t, []Node{}, heaters)

	tags, err := node.Attr("tags")
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRString("a"), ir.IRString("b")}, tags)

	_, err = node.Attr("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseDocumentYAML(t *testing.T) {
	doc := []byte(`
floorplan:
  remrate_target:
    bedroom_count: 3
    conditioned_area: 2150.5
  simulation:
    water_heaters:
      - style: ashp
      - style: conventional
`)
	node, err := ParseDocument(doc)
	require.NoError(t, err)

	fp, ok := node.Object()["floorplan"].(ir.IRObject)
	require.True(t, ok)
	assert.Equal(t, ir.IRObject{
		"bedroom_count":    ir.IRInt(3),
		"conditioned_area": ir.IRFloat(2150.5),
	}, fp["remrate_target"])
}

func TestParseDocumentJSON(t *testing.T) {
	node, err := ParseDocument([]byte(`{"floorplan": {"simulation": null}}`))
	require.NoError(t, err)

	fp, err := node.Attr("floorplan")
	require.NoError(t, err)
	sim, err := fp.(Node).Attr("simulation")
	require.NoError(t, err)
	assert.Nil(t, sim)
}

func TestParseDocumentRejectsScalars(t *testing.T) {
	_, err := ParseDocument([]byte(`- a
- b`))
	assert.Error(t, err)
}
