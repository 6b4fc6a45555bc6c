// Package subject adapts home, floorplan and simulation data to the attribute
// walk the activation engine performs.
//
// A subject is any graph of Nodes. Each Node answers Attr(name) with one of:
//
//   - nil: the attribute is absent or empty
//   - a Node: a to-one relation, walked further by the next path segment
//   - a []Node: a to-many relation, fanned out by the resolver
//   - a scalar or collection convertible by ir.FromGo
//
// ObjectNode wraps decoded JSON/YAML documents; StructNode wraps Go structs
// through their json tags. The resolver never sees anything else.
package subject
