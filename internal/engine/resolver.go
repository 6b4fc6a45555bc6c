package engine

import (
	"errors"
	"log/slog"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// Resolved is the outcome of resolving a field path.
//
// Available is false when any step of the walk found nothing. Multi is set
// when the walk crossed a to-many relation or ended on a collection; Values
// then holds every collected element (possibly none). A single-valued result
// holds exactly one value.
type Resolved struct {
	Values    []ir.IRValue
	Multi     bool
	Available bool
}

// Unavailable is the result of a path that could not be resolved.
var Unavailable = Resolved{}

// Scalar returns the single value of a single-valued result.
func (r Resolved) Scalar() (ir.IRValue, bool) {
	if !r.Available || r.Multi || len(r.Values) != 1 {
		return nil, false
	}
	return r.Values[0], true
}

// Resolver walks field paths. It has no state beyond its logger and is safe
// for concurrent use.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver that logs resolution misses at debug level.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve resolves path against subject and answers with the default logger.
func Resolve(path ir.FieldPath, subj subject.Node, answers subject.AnswerState) Resolved {
	return NewResolver(nil).Resolve(path, subj, answers)
}

// Resolve resolves one path. It never fails: absent answers, nil relations,
// unknown attributes and attribute errors all yield Unavailable.
func (r *Resolver) Resolve(path ir.FieldPath, subj subject.Node, answers subject.AnswerState) Resolved {
	if path.IsInstrument() {
		if answers == nil {
			return Unavailable
		}
		v, ok := answers.Answer(path.Instrument)
		if !ok {
			return Unavailable
		}
		return leaf(v)
	}

	if subj == nil || len(path.Segments) == 0 {
		return Unavailable
	}

	current := []subject.Node{subj}
	multi := false
	var values []ir.IRValue

	for i, seg := range path.Segments {
		last := i == len(path.Segments)-1
		var next []subject.Node

		for _, node := range current {
			raw, err := node.Attr(seg)
			if err != nil {
				if !errors.Is(err, subject.ErrNotFound) {
					r.logger.Debug("attribute error",
						"path", path.Raw,
						"segment", seg,
						"error", err)
				}
				raw = nil
			}

			switch val := raw.(type) {
			case nil:
				// dropped below
			case subject.Node:
				if last {
					values = append(values, nodeValue(val))
				} else {
					next = append(next, val)
				}
				continue
			case []subject.Node:
				multi = true
				if last {
					for _, n := range val {
						values = append(values, nodeValue(n))
					}
				} else {
					next = append(next, val...)
				}
				continue
			default:
				v, convErr := ir.FromGo(raw)
				if convErr != nil {
					r.logger.Debug("attribute value not convertible",
						"path", path.Raw,
						"segment", seg,
						"error", convErr)
					break
				}
				if ir.IsNull(v) {
					break
				}
				if last {
					if arr, ok := v.(ir.IRArray); ok {
						multi = true
						values = append(values, arr...)
					} else {
						values = append(values, v)
					}
					continue
				}
				if obj, ok := v.(ir.IRObject); ok {
					next = append(next, subject.NewObjectNode(obj))
					continue
				}
				// A scalar cannot be walked further.
			}

			if !multi {
				r.logger.Debug("field unavailable", "path", path.Raw, "segment", seg)
				return Unavailable
			}
		}

		if !last {
			current = next
		}
	}

	if !multi && len(values) != 1 {
		return Unavailable
	}
	return Resolved{Values: values, Multi: multi, Available: true}
}

// leaf builds the result for an answer value. Multi-select answers arrive
// as arrays and resolve multi-valued.
func leaf(v ir.IRValue) Resolved {
	if arr, ok := v.(ir.IRArray); ok {
		return Resolved{Values: arr, Multi: true, Available: true}
	}
	return Resolved{Values: []ir.IRValue{v}, Available: true}
}

// nodeValue is the value of a path that ends on a related object.
func nodeValue(n subject.Node) ir.IRValue {
	if obj, ok := n.(interface{ Object() ir.IRObject }); ok {
		return obj.Object()
	}
	return ir.IRObject{}
}
