// Package querysql compiles store queries to parameterized SQLite.
package querysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/queryir"
)

// Compile converts a query to parameterized SQL. Returns (sql, params,
// error).
//
// Identifiers come from queryir.Schema, never from the query itself, and
// every value is a ? parameter. Every query is ordered by seq, the store's
// logical clock, so results are deterministic.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}

	var sel queryir.Select
	switch query := q.(type) {
	case queryir.Select:
		sel = query
	case *queryir.Select:
		sel = *query
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}

	table, err := queryir.Resolve(sel)
	if err != nil {
		return "", nil, err
	}

	columns := sel.Columns
	if len(columns) == 0 {
		columns = table.ColumnNames()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(columns, ", "), table.Name)

	var params []any
	if sel.Filter != nil {
		where, p, err := compilePredicate(table, sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}

	b.WriteString(" ORDER BY seq ASC")
	return b.String(), params, nil
}

func compilePredicate(table queryir.Table, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(table, pred)
	case *queryir.Equals:
		return compileEquals(table, *pred)
	case queryir.And:
		return compileAnd(table, pred)
	case *queryir.And:
		return compileAnd(table, *pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles "field = ?". JSON columns compare canonical JSON.
func compileEquals(table queryir.Table, eq queryir.Equals) (string, []any, error) {
	col, _ := table.Column(eq.Field)

	var param any
	if col.JSON {
		data, err := ir.MarshalCanonical(eq.Value)
		if err != nil {
			return "", nil, fmt.Errorf("column %q: %w", eq.Field, err)
		}
		param = string(data)
	} else {
		var err error
		param, err = irValueToParam(eq.Value)
		if err != nil {
			return "", nil, fmt.Errorf("column %q: %w", eq.Field, err)
		}
	}

	return col.Name + " = ?", []any{param}, nil
}

func compileAnd(table queryir.Table, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		s, p, err := compilePredicate(table, pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, s)
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts a scalar IR value to a driver value. Booleans are
// stored as 0/1.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}

// Querier runs a SQL query. *store.Store implements it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Row is one result row keyed by column name. Values are as scanned by the
// driver: int64, float64, string or []byte.
type Row map[string]any

// Fetch compiles q and returns every matching row in seq order.
func Fetch(ctx context.Context, db Querier, q queryir.Query) ([]Row, error) {
	query, params, err := Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
