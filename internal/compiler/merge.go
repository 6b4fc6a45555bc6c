package compiler

import "github.com/axisenergy/checklist/internal/ir"

type conditionKey struct {
	role      string
	namespace string
	source    string
	target    string
}

// conditionMerger folds rules into Conditions keyed by
// (role, namespace, source, target), keeping first-seen order. A source can
// hold only one value, so separate rules on the same key are alternatives.
type conditionMerger struct {
	index map[conditionKey]int
	out   []ir.Condition
}

func newConditionMerger() *conditionMerger {
	return &conditionMerger{index: make(map[conditionKey]int)}
}

func (m *conditionMerger) add(role, namespace string, source ir.FieldPath, target string, pred ir.Predicate) {
	key := conditionKey{role: role, namespace: namespace, source: source.Raw, target: target}
	if i, ok := m.index[key]; ok {
		m.out[i].Predicates = append(m.out[i].Predicates, pred)
		return
	}
	m.index[key] = len(m.out)
	m.out = append(m.out, ir.Condition{
		Role:       role,
		Namespace:  namespace,
		Source:     source,
		Predicates: []ir.Predicate{pred},
		Target:     target,
	})
}

func (m *conditionMerger) conditions() []ir.Condition {
	return m.out
}
