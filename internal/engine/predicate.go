package engine

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/axisenergy/checklist/internal/ir"
)

// Evaluate applies one predicate to a resolved source value.
//
// Every operator is false on an unavailable source. Against a multi-valued
// source, equality and ordering pass when any element passes, one passes on
// any overlap with its candidates, and contains tests membership.
func Evaluate(p ir.Predicate, r Resolved) bool {
	if !r.Available {
		return false
	}

	switch p.Op {
	case ir.OpEquals:
		return anyValue(r.Values, func(v ir.IRValue) bool { return ir.Equal(v, p.Operand) })

	case ir.OpGreater, ir.OpLess:
		bound, ok := ir.Number(p.Operand)
		if !ok {
			return false
		}
		return anyValue(r.Values, func(v ir.IRValue) bool {
			n, ok := ir.Number(v)
			if !ok {
				return false
			}
			if p.Op == ir.OpGreater {
				return n > bound
			}
			return n < bound
		})

	case ir.OpOne:
		candidates, ok := p.Operand.(ir.IRArray)
		if !ok {
			candidates = ir.IRArray{p.Operand}
		}
		return anyValue(r.Values, func(v ir.IRValue) bool { return ir.Contains(candidates, v) })

	case ir.OpAny:
		if r.Multi {
			return len(r.Values) > 0
		}
		v, ok := r.Scalar()
		return ok && present(v)

	case ir.OpContains:
		if r.Multi {
			return ir.Contains(r.Values, p.Operand)
		}
		v, ok := r.Scalar()
		if !ok {
			return false
		}
		s, isStr := v.(ir.IRString)
		needle, needleStr := p.Operand.(ir.IRString)
		if isStr && needleStr {
			return strings.Contains(norm.NFC.String(string(s)), norm.NFC.String(string(needle)))
		}
		return ir.Equal(v, p.Operand)
	}

	return false
}

// EvaluateAny reports whether any of the alternatives passes.
func EvaluateAny(preds []ir.Predicate, r Resolved) bool {
	for _, p := range preds {
		if Evaluate(p, r) {
			return true
		}
	}
	return false
}

func anyValue(values []ir.IRValue, test func(ir.IRValue) bool) bool {
	for _, v := range values {
		if test(v) {
			return true
		}
	}
	return false
}

// present reports whether a scalar carries a value worth gating on.
func present(v ir.IRValue) bool {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return false
	case ir.IRString:
		return strings.TrimSpace(string(val)) != ""
	case ir.IRArray:
		return len(val) > 0
	}
	return true
}
