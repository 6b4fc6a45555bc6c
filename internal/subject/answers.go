package subject

import (
	"maps"
	"slices"

	"github.com/axisenergy/checklist/internal/ir"
)

// AnswerState exposes the latest answer per measure id.
type AnswerState interface {
	Answer(measureID string) (ir.IRValue, bool)
}

// Answers is a map-backed AnswerState. Null and empty-string values count as
// unanswered.
type Answers map[string]ir.IRValue

// Answer implements AnswerState.
func (a Answers) Answer(measureID string) (ir.IRValue, bool) {
	v, ok := a[measureID]
	if !ok || !Answered(v) {
		return nil, false
	}
	return v, true
}

// Set records value for measureID, replacing any earlier answer.
func (a Answers) Set(measureID string, value ir.IRValue) {
	a[measureID] = value
}

// With returns a copy of a with one more answer. The receiver is unchanged.
func (a Answers) With(measureID string, value ir.IRValue) Answers {
	out := a.Clone()
	out[measureID] = value
	return out
}

// Clone returns a shallow copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a)+1)
	maps.Copy(out, a)
	return out
}

// MeasureIDs returns the answered measure ids, sorted.
func (a Answers) MeasureIDs() []string {
	ids := make([]string, 0, len(a))
	for id, v := range a {
		if Answered(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Object returns the answers as an IRObject, dropping unanswered entries.
func (a Answers) Object() ir.IRObject {
	obj := make(ir.IRObject, len(a))
	for id, v := range a {
		if Answered(v) {
			obj[id] = v
		}
	}
	return obj
}

// AnswersFromObject builds Answers from a decoded document.
func AnswersFromObject(obj ir.IRObject) Answers {
	out := make(Answers, len(obj))
	maps.Copy(out, obj)
	return out
}

// Answered reports whether v counts as an answer.
func Answered(v ir.IRValue) bool {
	if ir.IsNull(v) {
		return false
	}
	switch val := v.(type) {
	case ir.IRString:
		return val != ""
	case ir.IRArray:
		return len(val) > 0
	}
	return true
}
