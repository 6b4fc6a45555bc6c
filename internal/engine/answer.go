package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/axisenergy/checklist/internal/ir"
	"github.com/axisenergy/checklist/internal/subject"
)

// Accepted date layouts for date instruments.
var dateLayouts = []string{time.DateOnly, time.RFC3339, "01/02/2006"}

// ValidateAnswer checks that value is an acceptable answer to inst.
//
// Multiple-choice answers must be among the instrument's responses; a list
// answer (multi-select) must have every element among them. Free-form
// instruments accept any non-empty scalar.
func ValidateAnswer(inst ir.Instrument, value ir.IRValue) error {
	if !subject.Answered(value) {
		return &AnswerError{MeasureID: inst.ID, Reason: "answer is empty"}
	}
	if _, ok := value.(ir.IRObject); ok {
		return &AnswerError{MeasureID: inst.ID, Value: ir.Display(value), Reason: "answer must be a scalar or list"}
	}

	switch inst.Type {
	case ir.TypeInteger:
		n, ok := ir.Number(value)
		if !ok || n != math.Trunc(n) {
			return &AnswerError{MeasureID: inst.ID, Value: ir.Display(value), Reason: "expected a whole number"}
		}
	case ir.TypeFloat:
		if _, ok := ir.Number(value); !ok {
			return &AnswerError{MeasureID: inst.ID, Value: ir.Display(value), Reason: "expected a number"}
		}
	case ir.TypeDate:
		s, ok := value.(ir.IRString)
		if !ok || !isDate(string(s)) {
			return &AnswerError{MeasureID: inst.ID, Value: ir.Display(value), Reason: "expected a date (YYYY-MM-DD)"}
		}
	case ir.TypeMultipleChoice:
		if len(inst.Responses) == 0 {
			return nil
		}
		choices, ok := value.(ir.IRArray)
		if !ok {
			choices = ir.IRArray{value}
		}
		for _, c := range choices {
			if !ir.Contains(inst.Responses, c) {
				return &AnswerError{MeasureID: inst.ID, Value: ir.Display(c), Reason: "not one of the suggested responses"}
			}
		}
	}
	return nil
}

// ParseAnswer converts raw text (from a command line or form field) into the
// typed value inst expects. Multiple-choice text is matched against the
// display form of each response so "3" selects a numeric response 3.
func ParseAnswer(inst ir.Instrument, raw string) (ir.IRValue, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &AnswerError{MeasureID: inst.ID, Reason: "answer is empty"}
	}

	var value ir.IRValue
	switch inst.Type {
	case ir.TypeInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, &AnswerError{MeasureID: inst.ID, Value: text, Reason: "expected a whole number"}
		}
		value = ir.IRInt(n)
	case ir.TypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &AnswerError{MeasureID: inst.ID, Value: text, Reason: "expected a number"}
		}
		value = ir.IRFloat(f)
	case ir.TypeMultipleChoice:
		value = ir.MustFromGo(text)
		for _, r := range inst.Responses {
			if ir.Display(r) == text {
				value = r
				break
			}
		}
	default:
		value = ir.MustFromGo(text)
	}

	if err := ValidateAnswer(inst, value); err != nil {
		return nil, err
	}
	return value, nil
}

func isDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
