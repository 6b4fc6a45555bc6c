package subject

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/axisenergy/checklist/internal/ir"
)

// ErrNotFound is returned by Attr when a node has no attribute of that name.
// The resolver treats it like nil: the condition reading it is not met.
var ErrNotFound = errors.New("attribute not found")

// Node is one object in a subject graph.
type Node interface {
	Attr(name string) (any, error)
}

// ObjectNode is a Node over a decoded document.
type ObjectNode struct {
	obj ir.IRObject
}

// NewObjectNode wraps obj. A nil object is an empty subject.
func NewObjectNode(obj ir.IRObject) *ObjectNode {
	if obj == nil {
		obj = ir.IRObject{}
	}
	return &ObjectNode{obj: obj}
}

// Attr implements Node. Nested objects come back as ObjectNodes; arrays whose
// elements are all objects come back as []Node so they fan out like a
// to-many relation.
func (n *ObjectNode) Attr(name string) (any, error) {
	v, ok := n.obj[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return wrapIR(v), nil
}

// Object returns the underlying document.
func (n *ObjectNode) Object() ir.IRObject {
	return n.obj
}

func wrapIR(v ir.IRValue) any {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRObject:
		return NewObjectNode(val)
	case ir.IRArray:
		if len(val) == 0 {
			return []Node{}
		}
		nodes := make([]Node, 0, len(val))
		for _, elem := range val {
			obj, ok := elem.(ir.IRObject)
			if !ok {
				return val
			}
			nodes = append(nodes, NewObjectNode(obj))
		}
		return nodes
	default:
		return v
	}
}

// LoadDocument reads a JSON or YAML subject document from path.
// JSON is a subset of YAML, so one decoder serves both.
func LoadDocument(path string) (*ObjectNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subject %s: %w", path, err)
	}
	node, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse subject %s: %w", filepath.Base(path), err)
	}
	return node, nil
}

// ParseDocument decodes a JSON or YAML mapping into an ObjectNode.
func ParseDocument(data []byte) (*ObjectNode, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	obj, err := DocumentValue(raw)
	if err != nil {
		return nil, err
	}
	return NewObjectNode(obj), nil
}

// DocumentValue converts a decoded YAML mapping into an IRObject.
// yaml.v3 decodes nested mappings with non-string keys as map[any]any;
// those keys are stringified.
func DocumentValue(raw map[string]any) (ir.IRObject, error) {
	v, err := ir.FromGo(normalizeYAML(raw))
	if err != nil {
		return nil, err
	}
	switch obj := v.(type) {
	case ir.IRObject:
		return obj, nil
	case ir.IRNull:
		return ir.IRObject{}, nil
	default:
		return nil, fmt.Errorf("subject document must be a mapping, got %T", v)
	}
}

func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeYAML(elem)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeYAML(elem)
		}
		return out
	default:
		return v
	}
}

// StructNode is a Node over a Go struct. Attribute names are the struct's
// json tag names (or field names when untagged).
//
//   - nil pointers, nil maps and nil interfaces read as nil
//   - nested structs and struct pointers read as StructNodes
//   - slices of structs read as []Node (to-many)
//   - everything else is returned as-is for ir.FromGo
type StructNode struct {
	v reflect.Value
}

// NewStructNode wraps a struct or pointer to struct. It returns nil for a nil
// pointer so callers can pass optional relations straight through. A nil
// *StructNode is a valid Node whose attributes all read as nil.
func NewStructNode(v any) *StructNode {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return &StructNode{v: rv}
}

// Attr implements Node.
func (n *StructNode) Attr(name string) (any, error) {
	if n == nil {
		return nil, nil
	}
	idx, ok := fieldIndex(n.v.Type())[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", n.v.Type().Name(), name, ErrNotFound)
	}
	fv, err := n.v.FieldByIndexErr(idx)
	if err != nil {
		// Promoted through a nil embedded pointer.
		return nil, nil
	}
	return structValue(fv), nil
}

var fieldCache sync.Map // reflect.Type -> map[string][]int

func fieldIndex(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	index := make(map[string][]int, t.NumField())
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		index[name] = f.Index
	}
	fieldCache.Store(t, index)
	return index
}

func structValue(rv reflect.Value) any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		if _, isEnum := rv.Interface().(ir.Enum); isEnum && rv.Kind() == reflect.Pointer {
			return rv.Interface()
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if _, isEnum := rv.Interface().(ir.Enum); isEnum {
			return rv.Interface()
		}
		if rv.Type().PkgPath() == "time" {
			return rv.Interface()
		}
		return &StructNode{v: rv}
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if isStructElem(rv.Type().Elem()) {
			nodes := make([]Node, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				if node := NewStructNode(rv.Index(i).Interface()); node != nil {
					nodes = append(nodes, node)
				}
			}
			return nodes
		}
	}
	return rv.Interface()
}

func isStructElem(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t.PkgPath() != "time"
}
