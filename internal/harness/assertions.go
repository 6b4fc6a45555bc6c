package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/queryir"
	"github.com/axisenergy/checklist/internal/querysql"
	"github.com/axisenergy/checklist/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s %s", i+1, event.Seq, event.Type, event.MeasureID)
			if event.Value != nil {
				fmt.Fprintf(&buf, " = %s", ir.Display(event.Value))
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertTraceContains checks for an event of the assertion's type for its
// measure.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	event := assertion.event()
	for _, e := range trace {
		if e.Type == event && e.MeasureID == assertion.Measure {
			return nil
		}
	}

	return &AssertionError{
		Type:     "trace_contains",
		Expected: fmt.Sprintf("%s event for %s", event, assertion.Measure),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that measures first appear in the specified order
// among events of the assertion's type. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	event := assertion.event()

	// Step 1: Find first position of each expected measure
	positions := make(map[string]int)
	for i, e := range trace {
		if e.Type != event {
			continue
		}
		if _, seen := positions[e.MeasureID]; !seen {
			positions[e.MeasureID] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all measures found
	for _, m := range assertion.Measures {
		if positions[m] == 0 {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("all measures present: %v", assertion.Measures),
				Actual:   fmt.Sprintf("no %s event for %s", event, m),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Measures); i++ {
		prev := assertion.Measures[i-1]
		curr := assertion.Measures[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("%s events in order: %v", event, assertion.Measures),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks the exact number of events of the assertion's
// type, restricted to its measure when one is given.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	event := assertion.event()
	count := 0
	for _, e := range trace {
		if e.Type != event {
			continue
		}
		if assertion.Measure != "" && e.MeasureID != assertion.Measure {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := event + " events"
		if assertion.Measure != "" {
			what += " for " + assertion.Measure
		}
		return &AssertionError{
			Type:     "trace_count",
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks that exactly one row of a store table matches the
// where clause and holds the expected values. Table and column names are
// checked against the store schema before any SQL is built.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	filter, err := queryir.Where(assertion.Where)
	if err != nil {
		return fmt.Errorf("final_state where: %w", err)
	}
	sel := queryir.Select{From: assertion.Table, Filter: filter}
	if err := queryir.Validate(sel); err != nil {
		return fmt.Errorf("final_state: %w", err)
	}
	table, _ := queryir.Resolve(sel)

	rows, err := querysql.Fetch(ctx, st, sel)
	if err != nil {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	switch {
	case len(rows) == 0:
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	case len(rows) > 1:
		// More than one match makes the assertion ambiguous.
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}
	actualRow := rows[0]

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     "final_state",
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, table.ColumnNames()),
			}
		}

		col, _ := table.Column(key)
		if !stateValuesEqual(col, expectedValue, actualValue) {
			return &AssertionError{
				Type:     "final_state",
				Expected: fmt.Sprintf("field %q = %v", key, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v", key, displayColumn(actualValue)),
			}
		}
	}

	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected value with a scanned column value.
// SQLite returns integers as int64 and text as string or []byte; booleans
// are stored as 0/1. JSON columns are decoded before comparison so that
// expect: {value: "A"} matches the stored text "\"A\"".
func stateValuesEqual(column queryir.Column, expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if b, ok := expected.(bool); ok {
		if n, ok := actual.(int64); ok {
			return b == (n != 0)
		}
	}

	want, err := ir.FromGo(expected)
	if err != nil {
		return false
	}
	got, ok := columnValue(column, actual)
	if !ok {
		return false
	}
	return ir.Equal(want, got)
}

// columnValue converts a scanned column to an IRValue.
func columnValue(column queryir.Column, v any) (ir.IRValue, bool) {
	switch val := v.(type) {
	case int64:
		return ir.IRInt(val), true
	case float64:
		return ir.IRFloat(val), true
	case bool:
		return ir.IRBool(val), true
	case []byte:
		return textValue(column, string(val))
	case string:
		return textValue(column, val)
	}
	return nil, false
}

func textValue(column queryir.Column, text string) (ir.IRValue, bool) {
	if !column.JSON {
		return ir.IRString(text), true
	}
	v, err := ir.UnmarshalIRValue([]byte(text))
	if err != nil {
		return nil, false
	}
	return v, true
}

func displayColumn(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
