package queryir

import "github.com/axisenergy/checklist/internal/ir"

// Query is a read-only query over one store table.
type Query interface {
	queryNode()
}

// Predicate is a row filter.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY seq
//
// Rows always come back in log order.
type Select struct {
	From    string    // store table
	Filter  Predicate // nil = every row
	Columns []string  // nil = every column, in schema order
}

func (Select) queryNode() {}

// Equals matches rows whose column equals a literal.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// And matches rows that pass every predicate. An empty And matches every
// row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Column describes one store column.
type Column struct {
	Name string
	JSON bool // stored as JSON text
}

// Table describes one store table.
type Table struct {
	Name    string
	Columns []Column
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the table's column names in schema order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Schema is the queryable part of the store, keyed by table name. It
// mirrors store/schema.sql.
var Schema = map[string]Table{
	"subjects": {Name: "subjects", Columns: []Column{
		{Name: "id"},
		{Name: "document", JSON: true},
		{Name: "seq"},
	}},
	"answers": {Name: "answers", Columns: []Column{
		{Name: "seq"},
		{Name: "subject_id"},
		{Name: "program"},
		{Name: "measure_id"},
		{Name: "value", JSON: true},
		{Name: "recorded_by"},
	}},
	"evaluations": {Name: "evaluations", Columns: []Column{
		{Name: "id"},
		{Name: "subject_id"},
		{Name: "program"},
		{Name: "program_hash"},
		{Name: "answers_hash"},
		{Name: "active", JSON: true},
		{Name: "sweeps"},
		{Name: "converged"},
		{Name: "seq"},
		{Name: "engine_version"},
		{Name: "ir_version"},
	}},
}

// Where builds a filter from column/value pairs, in sorted column order.
// Values are converted with ir.FromGo.
func Where(fields map[string]any) (Predicate, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	preds := make([]Predicate, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		v, err := ir.FromGo(fields[name])
		if err != nil {
			return nil, fieldError(name, err)
		}
		preds = append(preds, &Equals{Field: name, Value: v})
	}
	return &And{Predicates: preds}, nil
}
