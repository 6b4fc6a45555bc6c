package queryir

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/axisenergy/checklist/internal/ir"
)

// Validate checks a query against Schema. All problems are joined into the
// returned error.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.errs...)
}

// Resolve returns the table a Select reads.
func Resolve(sel Select) (Table, error) {
	t, ok := Schema[sel.From]
	if !ok {
		return Table{}, fmt.Errorf("unknown table %q: must be one of %v", sel.From, slices.Sorted(maps.Keys(Schema)))
	}
	return t, nil
}

type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.add("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.add("nil query")
	default:
		v.add("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	table, err := Resolve(sel)
	if err != nil {
		v.errs = append(v.errs, err)
		return
	}
	for _, name := range sel.Columns {
		if _, ok := table.Column(name); !ok {
			v.add("unknown column %q in table %q", name, table.Name)
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(table, sel.Filter)
	}
}

func (v *validator) validatePredicate(table Table, p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(table, pred)
	case *Equals:
		v.validateEquals(table, *pred)
	case And:
		v.validateAnd(table, pred)
	case *And:
		v.validateAnd(table, *pred)
	default:
		v.add("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(table Table, eq Equals) {
	col, ok := table.Column(eq.Field)
	if !ok {
		v.add("unknown column %q in table %q", eq.Field, table.Name)
		return
	}
	if eq.Value == nil || ir.IsNull(eq.Value) {
		v.add("column %q compared to null: no stored column is nullable", eq.Field)
		return
	}
	if col.JSON {
		return
	}
	switch eq.Value.(type) {
	case ir.IRArray, ir.IRObject:
		v.add("column %q holds a scalar, cannot compare with %s", eq.Field, ir.Display(eq.Value))
	}
}

func (v *validator) validateAnd(table Table, and And) {
	for _, p := range and.Predicates {
		v.validatePredicate(table, p)
	}
}

func fieldError(name string, err error) error {
	return fmt.Errorf("column %q: %w", name, err)
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
